// Package prompt asks an operator for input.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks an operator questions. Calls may block indefinitely on
// human input.
type Prompter interface {
	// Prompt asks msg and returns the answer, or def if the answer is empty.
	Prompt(msg, def string) (string, error)

	// PromptPassword asks msg without echoing the answer. The answer may be
	// empty.
	PromptPassword(msg string) (string, error)
}

// ErrNoTerminal is returned by PromptPassword when input is not a terminal.
var ErrNoTerminal = errors.New("prompt: no terminal available for password prompt")

// Terminal prompts on a terminal. Questions are written to out, answers are
// read from in; passwords are read with echo disabled.
type Terminal struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTerminal returns a Terminal reading from in and writing to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, reader: bufio.NewReader(in)}
}

// Prompt prints msg with the default in brackets and reads one line.
func (t *Terminal) Prompt(msg, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(t.out, "%s [%s]: ", msg, def)
	} else {
		fmt.Fprintf(t.out, "%s: ", msg)
	}

	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("prompt: read answer: %w", err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// PromptPassword prints msg and reads a line with echo disabled.
func (t *Terminal) PromptPassword(msg string) (string, error) {
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	fmt.Fprintf(t.out, "%s: ", msg)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("prompt: read password: %w", err)
	}
	return string(secret), nil
}
