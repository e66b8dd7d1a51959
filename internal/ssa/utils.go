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

func b2i(v bool) int64 {
    if v {
        return 1
    } else {
        return 0
    }
}

func gcd(a uint, b uint) uint {
    for b != 0 {
        a, b = b, a % b
    }
    return a
}

func valnewref(v Value) (r *Value) {
    r = new(Value)
    *r = v
    return
}

func valsliceref(v []Value) (r []*Value) {
    r = make([]*Value, len(v))
    for i := range v { r[i] = &v[i] }
    return
}

func addblock(bbs []*BasicBlock, bb *BasicBlock) []*BasicBlock {
    for _, v := range bbs {
        if v == bb {
            return bbs
        }
    }
    return append(bbs, bb)
}

func delblock(bbs []*BasicBlock, bb *BasicBlock) []*BasicBlock {
    for i, v := range bbs {
        if v == bb {
            return append(bbs[:i], bbs[i + 1:]...)
        }
    }
    return bbs
}
