// Package input contains the line-reading abstractions cmd/tameparse-repl
// uses to get REPL command lines from either a TTY or a plain pipe.
//
// Grounded on the teacher's own internal/input package, kept almost
// unchanged in shape: DirectReader/InteractiveReader preserve the same
// split (a bufio fallback versus a GNU-readline-backed reader with history
// and line editing), renamed from *CommandReader since what's read here is
// a REPL directive (":load", ":compile", ":quit") rather than a game
// command.
package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Reader reads one REPL line at a time. ReadLine blocks until a non-blank
// line is available, returning io.EOF at end of input.
type Reader interface {
	ReadLine() (string, error)
	Close() error
}

// DirectReader reads lines from any io.Reader with no editing support.
// Use it when stdin isn't a TTY (piped input, scripted sessions).
//
// DirectReader should not be constructed directly; use NewDirectReader.
type DirectReader struct {
	r *bufio.Reader
}

// NewDirectReader wraps r in a buffered line reader. The returned Reader
// must have Close called on it before disposal.
func NewDirectReader(r io.Reader) *DirectReader {
	return &DirectReader{r: bufio.NewReader(r)}
}

// Close is a no-op; DirectReader holds no resources that need tearing
// down, but callers should still treat it as though it must be closed, in
// case that changes.
func (dr *DirectReader) Close() error {
	return nil
}

// ReadLine reads the next non-blank line. At end of input it returns
// io.EOF.
func (dr *DirectReader) ReadLine() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = dr.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}

		line = strings.TrimSpace(line)

		if line == "" && err == io.EOF {
			return "", io.EOF
		}
	}

	return line, nil
}

// InteractiveReader reads lines from stdin using a Go implementation of
// GNU Readline: line editing and command history. Use it only when
// connected to an actual TTY.
//
// InteractiveReader should not be constructed directly; use
// NewInteractiveReader.
type InteractiveReader struct {
	rl     *readline.Instance
	prompt string
}

// NewInteractiveReader initializes readline with the given prompt. The
// returned InteractiveReader must have Close called on it before disposal
// to properly tear down readline resources.
func NewInteractiveReader(prompt string) (*InteractiveReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("input: create readline config: %w", err)
	}

	return &InteractiveReader{
		rl:     rl,
		prompt: prompt,
	}, nil
}

// Close tears down readline resources.
func (ir *InteractiveReader) Close() error {
	return ir.rl.Close()
}

// ReadLine reads the next non-blank line from stdin.
func (ir *InteractiveReader) ReadLine() (string, error) {
	var line string
	var err error

	for line == "" {
		line, err = ir.rl.Readline()
		if err != nil {
			return "", err
		}

		line = strings.TrimSpace(line)
	}

	return line, nil
}

// SetPrompt updates the prompt to the given text.
func (ir *InteractiveReader) SetPrompt(p string) {
	ir.prompt = p
	ir.rl.SetPrompt(p)
}

// GetPrompt gets the current prompt.
func (ir *InteractiveReader) GetPrompt() string {
	return ir.prompt
}
