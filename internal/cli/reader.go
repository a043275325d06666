package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a prompt is abandoned because its
// context ended.
var ErrInputCancelled = errors.New("input canceled")

// Prompter asks the user questions on a terminal. Reads honor context
// cancellation so an interrupted `quest checkpoint restore` does not hang
// on stdin.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		panic("prompter input cannot be nil")
	}
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// ReadLine returns the next line without surrounding whitespace. A final
// line missing its newline is returned together with io.EOF.
func (p *Prompter) ReadLine(ctx context.Context) (string, error) {
	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)

	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		text, err := p.in.ReadString('\n')
		ch <- line{text: strings.TrimSpace(text), err: err}
	}()

	select {
	case <-ctx.Done():
		// The read goroutine finishes on its own once input arrives.
		return "", ErrInputCancelled
	case l := <-ch:
		return l.text, l.err
	}
}

// Confirm asks a yes/no question. Anything but "y" or "yes" declines,
// including end of input.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprint(p.out, FormatPrompt(question+" [y/N]")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	answer, err := p.ReadLine(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
