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

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/unroll"
	"github.com/cloudwego/unroll/debug"
	"github.com/cloudwego/unroll/internal/opts"
	"github.com/fatih/color"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var (
	target    = flag.String("target", opts.UnrollTarget, "only unroll loops of this function, \"*\" for every function")
	count     = flag.Int("count", opts.UnrollCount, "unroll factor, 0 to unroll loops with a known trip count completely")
	threshold = flag.Int("threshold", opts.UnrollThreshold, "size limit of the unrolled loop body, 0 for unlimited")
	host      = flag.Bool("host-threshold", false, "also limit the size by the instruction cache of this machine")
	verify    = flag.Bool("verify", opts.UnrollVerify, "verify the function after every transformation")
	emit      = flag.String("emit", "ir", "output format: ir, llvm or dot")
	output    = flag.String("o", "", "output file, defaults to the standard output")
	verbose   = flag.Int("v", 0, "log verbosity")
	stats     = flag.Bool("stats", false, "print statistics when done")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file.ir>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	/* exactly one input file */
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	/* logs go to stderr */
	path := flag.Arg(0)
	commonlog.Configure(*verbose, nil)

	/* read the source for error reporting */
	src, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read file: %v", err)
		os.Exit(1)
	}

	/* transform the functions */
	res, err := unroll.Transform(string(src), options()...)
	if err != nil {
		reportError(path, string(src), err)
		os.Exit(1)
	}

	/* the diagnostics of every loop */
	for _, rp := range res.Reports {
		printReport(rp)
	}

	/* write the result */
	if err = writeOutput(res); err != nil {
		color.Red("failed to write output: %v", err)
		os.Exit(1)
	}

	/* statistics if needed */
	if *stats {
		printStats()
	}
}

func options() []unroll.Option {
	return []unroll.Option{
		unroll.WithTarget(*target),
		unroll.WithUnrollCount(*count),
		unroll.WithUnrollThreshold(*threshold),
		unroll.WithHostThreshold(*host),
		unroll.WithVerify(*verify),
	}
}

func render(res *unroll.Result) (string, error) {
	switch *emit {
	case "ir":
		return res.IR(), nil
	case "llvm":
		return res.LLVM()
	case "dot":
		return res.DOT()
	default:
		return "", fmt.Errorf("unknown output format: %s", *emit)
	}
}

func writeOutput(res *unroll.Result) error {
	buf, err := render(res)
	if err != nil {
		return err
	}

	/* standard output by default */
	if *output == "" {
		_, err = fmt.Print(buf)
		return err
	} else {
		return os.WriteFile(*output, []byte(buf), 0644)
	}
}

func printReport(rp unroll.Report) {
	for _, line := range strings.Split(strings.TrimSuffix(rp.String(), "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "skipping:"):
			color.New(color.FgYellow).Fprintln(os.Stderr, line)
		case line == "failed...":
			color.New(color.FgRed).Fprintln(os.Stderr, line)
		case line == "finished":
			color.New(color.FgGreen).Fprintln(os.Stderr, line)
		case strings.HasPrefix(line, "Loop Unroll:"):
			color.New(color.Bold).Fprintln(os.Stderr, line)
		default:
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

func reportError(path string, src string, err error) {
	var se unroll.SyntaxError
	if !errors.As(err, &se) {
		color.Red("%s: %v", path, err)
		return
	}

	/* caret-style syntax error */
	lines := strings.Split(src, "\n")
	if se.Line <= 0 || se.Line > len(lines) {
		color.Red("Syntax error in %s: %s", path, se.Reason)
		return
	}

	/* point at the offending column */
	caret := strings.Repeat(" ", max(0, se.Column-1)) + "^"
	color.Red("Syntax error in %s at line %d, column %d:", path, se.Line, se.Column)
	fmt.Fprintln(os.Stderr, lines[se.Line-1])
	color.New(color.FgHiRed).Fprintln(os.Stderr, caret)
	fmt.Fprintf(os.Stderr, "→ %s\n", se.Reason)
}

func printStats() {
	st := debug.GetStats()
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s visited %d, skipped %d, rejected %d, complete %d, partial %d\n",
		bold("loops:"), st.Loops.Visited, st.Loops.Skipped, st.Loops.Rejected, st.Loops.Complete, st.Loops.Partial)
	fmt.Fprintf(os.Stderr, "%s %d clones, %d folded, %d removed\n",
		bold("transform:"), st.Transform.Clones, st.Transform.Folded, st.Transform.Removed)
}
