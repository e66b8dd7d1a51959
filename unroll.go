/*
 * Copyright 2022 CloudWeGo Authors
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

package unroll

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/unroll/internal/asm"
	"github.com/cloudwego/unroll/internal/driver"
	"github.com/cloudwego/unroll/internal/llvm"
	"github.com/cloudwego/unroll/internal/opts"
	"github.com/cloudwego/unroll/internal/ssa"
)

// Report describes one attempt to unroll a loop.
type Report struct {
	Func         string
	Loop         string
	Depth        int
	State        string
	Unrolled     bool
	Complete     bool
	TripCount    uint
	TripMultiple uint
	Size         uint
	Count        uint
	Reason       string
	text         string
}

// String returns the diagnostics of the attempt, one fact per line.
func (self Report) String() string {
	return self.text
}

func newReport(rp *driver.Report) Report {
	ret := Report{
		Func:     rp.Func,
		Loop:     rp.Header,
		Depth:    rp.Depth,
		State:    rp.State().String(),
		Unrolled: rp.Unrolled(),
		Reason:   rp.Summary(),
		text:     rp.String(),
	}

	/* analysis results, if any */
	if res := rp.Result; res != nil {
		ret.Complete = res.Complete && rp.Unrolled()
		ret.TripCount = res.TripCount
		ret.TripMultiple = res.TripMultiple
		ret.Size = res.Size
		ret.Count = res.Count
	}

	/* the reason is only kept for rejected loops */
	if ret.Unrolled {
		ret.Reason = ""
	}
	return ret
}

// Result holds the transformed functions and the reports of every loop.
type Result struct {
	Reports []Report
	funcs   []*ssa.Func
}

// Unrolled counts the loops that have been transformed.
func (self *Result) Unrolled() (n int) {
	for _, rp := range self.Reports {
		if rp.Unrolled {
			n++
		}
	}
	return
}

// IR prints the transformed functions in the textual IR syntax.
func (self *Result) IR() string {
	ret := make([]string, 0, len(self.funcs))
	for _, fn := range self.funcs {
		ret = append(ret, fn.String())
	}
	return strings.Join(ret, "\n")
}

// LLVM translates the transformed functions into LLVM assembly.
func (self *Result) LLVM() (string, error) {
	return llvm.ExportString(self.funcs...)
}

// DOT renders the control flow graph of every transformed function in the
// Graphviz syntax, one graph per function.
func (self *Result) DOT() (string, error) {
	ret := make([]string, 0, len(self.funcs))
	for _, fn := range self.funcs {
		if buf, err := ssa.DOT(fn); err != nil {
			return "", err
		} else {
			ret = append(ret, buf)
		}
	}
	return strings.Join(ret, "\n"), nil
}

// Diagnostics concatenates the text of every report.
func (self *Result) Diagnostics() string {
	var sb strings.Builder
	for _, rp := range self.Reports {
		sb.WriteString(rp.String())
	}
	return sb.String()
}

// Transform reads the functions in src and unrolls their loops.
func Transform(src string, options ...Option) (*Result, error) {
	return transform("<input>", src, options)
}

// TransformFile is like Transform but reads the functions from a file.
func TransformFile(path string, options ...Option) (*Result, error) {
	if buf, err := os.ReadFile(path); err != nil {
		return nil, err
	} else {
		return transform(path, string(buf), options)
	}
}

func transform(file string, src string, options []Option) (*Result, error) {
	var err error
	var fns []*ssa.Func

	/* parse the options */
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}

	/* parse the functions */
	if fns, err = asm.Parse(file, src); err != nil {
		return nil, convertError(err)
	}

	/* every function must be valid before transforming */
	for _, fn := range fns {
		if err = ssa.Verify(fn); err != nil {
			return nil, convertError(err)
		}
	}

	/* unroll every function */
	ret := &Result{funcs: fns}
	drv := driver.New(o)

	/* run the driver on each function */
	for _, fn := range fns {
		if rps, err := runOnFunc(drv, fn); err != nil {
			return nil, err
		} else {
			ret.Reports = append(ret.Reports, rps...)
		}
	}

	/* all done */
	return ret, nil
}

func runOnFunc(drv *driver.Driver, fn *ssa.Func) (ret []Report, err error) {
	defer func() {
		if v := recover(); v != nil {
			ret, err = nil, InternalError{Func: fn.Name, Reason: fmt.Sprint(v)}
		}
	}()

	/* convert all the reports */
	for _, rp := range drv.RunOnFunc(fn) {
		ret = append(ret, newReport(rp))
	}
	return
}

func convertError(err error) error {
	var ae asm.Error
	var ve ssa.VerifyError

	/* convert to the public types */
	switch {
	case errors.As(err, &ae):
		return SyntaxError{Line: ae.Pos.Line, Column: ae.Pos.Column, Reason: ae.Reason}
	case errors.As(err, &ve):
		return InvalidError{Func: ve.Func, Block: ve.Block, Reason: ve.Reason}
	default:
		return err
	}
}
