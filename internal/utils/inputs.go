package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when the reader is exhausted before a line is read.
var ErrNoInput = errors.New("no input")

// Input reads interactive answers from a single source. All prompts must go
// through the same Input so buffered bytes are not lost between them.
type Input struct {
	raw io.Reader
	br  *bufio.Reader
}

// NewInput wraps r for prompting.
func NewInput(r io.Reader) *Input {
	if r == nil {
		r = os.Stdin
	}
	return &Input{raw: r, br: bufio.NewReader(r)}
}

// Line writes prompt and reads one trimmed line.
func (in *Input) Line(prompt string, w io.Writer) (string, error) {
	_, _ = fmt.Fprint(w, prompt)
	line, err := in.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Secret prompts for a password. On a terminal the input is not echoed;
// otherwise a plain line is read (pipes, tests).
func (in *Input) Secret(prompt string, w io.Writer) (string, error) {
	if f, ok := in.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(w, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return in.Line(prompt, w)
}

// YesNo prompts until the answer is y/yes or n/no. Exhausted input counts as no.
func (in *Input) YesNo(prompt string, w io.Writer) bool {
	for {
		answer, err := in.Line(prompt+" (y/n): ", w)
		if err != nil {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}
