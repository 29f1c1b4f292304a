// Copyright 2026 The Custody Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks for values the operator did not pass as flags.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// Interactive is false when stdin is not a terminal; Ask then
	// returns the current value unchanged.
	Interactive bool
}

// NewPrompter reads from stdin and writes prompts to stderr.
func NewPrompter() *Prompter {
	return &Prompter{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stderr,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// NewPrompterFrom is NewPrompter over explicit streams.
func NewPrompterFrom(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, Interactive: interactive}
}

// Ask fills *value from one input line when it is empty and the
// prompter is interactive. An empty answer leaves it empty.
func (p *Prompter) Ask(label string, value *string) error {
	if *value != "" || !p.Interactive {
		return nil
	}
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	*value = strings.TrimSpace(line)
	return nil
}
