// Command t2b-compile turns a persisted action log into an automation
// script without a browser or a live session.
//
// Usage:
//
//	t2b-compile -log actions.json -dialect playwright-python [-out dir] [-task "description"]
//
// Exit codes: 0 success, 1 log read error, 2 malformed log, 3 unknown
// dialect.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/talk2silicon/talk2browser/recorder"
	"github.com/talk2silicon/talk2browser/script"
)

const (
	exitOK = iota
	exitReadError
	exitMalformedLog
	exitUnknownDialect
)

func main() {
	os.Exit(run())
}

func run() int {
	logPath := flag.String("log", "", "path to a persisted action log")
	dialect := flag.String("dialect", "", "target dialect: "+strings.Join(script.Names(), ", "))
	outDir := flag.String("out", ".", "output directory")
	task := flag.String("task", "", "task description for the script boilerplate and filename")
	flag.Parse()

	if *logPath == "" || *dialect == "" {
		fmt.Fprintln(os.Stderr, "usage: t2b-compile -log <file> -dialect <name> [-out dir] [-task \"...\"]")
		return exitReadError
	}

	d, err := script.Lookup(*dialect)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUnknownDialect
	}

	records, err := recorder.LoadFile(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, recorder.ErrMalformedLog) {
			return exitMalformedLog
		}
		return exitReadError
	}

	src, err := script.Emit(records, *dialect, *task)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitMalformedLog
	}

	path := script.OutputPath(*outDir, *task, d)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write script:", err)
		return exitReadError
	}

	fmt.Println(path)
	return exitOK
}
