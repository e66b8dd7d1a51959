/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssa

type UnrollErrorKind uint8

const (
    NotUnrollable UnrollErrorKind = iota + 1
    UnknownTripCount
    TooLarge
)

func (self UnrollErrorKind) String() string {
    switch self {
        case NotUnrollable    : return "not unrollable"
        case UnknownTripCount : return "unknown trip count"
        case TooLarge         : return "too large"
        default               : return "unknown error"
    }
}

// UnrollError is returned when a loop is rejected, the function is always
// left unchanged in this case.
type UnrollError struct {
    Kind UnrollErrorKind
    Note string
}

var (
    ErrNotUnrollable    = UnrollError { Kind: NotUnrollable }
    ErrUnknownTripCount = UnrollError { Kind: UnknownTripCount }
    ErrTooLarge         = UnrollError { Kind: TooLarge }
)

func (self UnrollError) Error() string {
    if self.Note == "" {
        return self.Kind.String()
    } else {
        return self.Kind.String() + ": " + self.Note
    }
}

// Is matches any UnrollError of the same kind, regardless of the note.
func (self UnrollError) Is(err error) bool {
    if e, ok := err.(UnrollError); !ok {
        return false
    } else {
        return e.Kind == self.Kind
    }
}
