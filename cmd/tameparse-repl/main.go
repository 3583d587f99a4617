/*
tameparse-repl starts an interactive session for exercising a compiled
lexer/grammar pipeline without a full build.

Usage:

	tameparse-repl [flags]

Once started, the REPL reads directives from stdin (GNU-readline editing
is used automatically when connected to a TTY; otherwise input is read
directly). The directives are:

	:load FILE    Load a compile request (the JSON form of
	              service.CompileRequest: language, lexer patterns,
	              grammar) from FILE.
	:compile      Run the loaded request through the pipeline and print
	              a human-readable dump of the compiled tables.
	:help         List the available directives.
	:quit         End the session.

The flags are:

	-v, --version
		Give the current generator version and exit.

	-d, --direct
		Force reading directly from stdin instead of going through GNU
		readline, even if connected to a TTY.
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dekarrin/tameparse/internal/input"
	"github.com/dekarrin/tameparse/internal/service"
	"github.com/dekarrin/tameparse/internal/tameparse/binout"
	"github.com/dekarrin/tameparse/internal/tameparse/outstage"
	"github.com/dekarrin/tameparse/internal/version"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

const (
	ExitSuccess = iota
	ExitSessionError
	ExitInitError
)

var (
	returnCode  = ExitSuccess
	flagVersion = pflag.BoolP("version", "v", false, "Give the current generator version and exit.")
	forceDirect = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of going through GNU readline where possible.")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		}
		os.Exit(returnCode)
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("tameparse-repl (tameparse v%s)\n", version.Current)
		return
	}

	useReadline := !*forceDirect && isatty.IsTerminal(os.Stdin.Fd())

	var reader input.Reader
	var err error
	if useReadline {
		reader, err = input.NewInteractiveReader("tameparse> ")
	} else {
		reader = input.NewDirectReader(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		returnCode = ExitInitError
		return
	}
	defer reader.Close()

	sess := &session{out: os.Stdout}
	fmt.Fprintf(os.Stdout, "tameparse-repl %s — type :help for directives\n", version.Current)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				return
			}
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
			returnCode = ExitSessionError
			return
		}

		if !sess.dispatch(line) {
			return
		}
	}
}

// session holds the REPL's in-memory state between directives: the last
// loaded compile request, so ":compile" can be issued repeatedly without
// reloading.
type session struct {
	out     io.Writer
	pending *service.CompileRequest
}

// dispatch runs one directive line, returning false if the session should
// end.
func (s *session) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case ":quit", ":exit":
		return false
	case ":help":
		s.printHelp()
	case ":load":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: :load FILE")
			return true
		}
		s.load(fields[1])
	case ":compile":
		s.compile()
	default:
		fmt.Fprintf(s.out, "unrecognized directive %q — type :help\n", fields[0])
	}
	return true
}

func (s *session) printHelp() {
	fmt.Fprintln(s.out, ":load FILE   load a compile request from a JSON file")
	fmt.Fprintln(s.out, ":compile     run the loaded request through the pipeline")
	fmt.Fprintln(s.out, ":help        show this message")
	fmt.Fprintln(s.out, ":quit        end the session")
}

func (s *session) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(s.out, "could not read %s: %s\n", path, err)
		return
	}

	var req service.CompileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fmt.Fprintf(s.out, "could not parse %s: %s\n", path, err)
		return
	}

	s.pending = &req
	fmt.Fprintf(s.out, "loaded %s (%d lexer patterns, %d rules)\n", path, len(req.Lexer.Patterns), len(req.Parser.Grammar.Rules))
}

func (s *session) compile() {
	if s.pending == nil {
		fmt.Fprintln(s.out, "nothing loaded — use :load FILE first")
		return
	}

	debug := &outstage.DebugBackend{}
	_, err := outstage.Pipeline(
		context.Background(),
		binout.Meta{
			LanguageName:           s.pending.Language,
			GeneratorVersion:       version.Encoded(),
			GeneratorVersionString: version.Current,
		},
		s.pending.Lexer,
		s.pending.Parser,
		debug,
	)
	if err != nil {
		fmt.Fprintf(s.out, "compile failed: %s\n", err)
		return
	}

	fmt.Fprint(s.out, debug.String())
}
