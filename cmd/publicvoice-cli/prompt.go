package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter asks the user for input. Secret never echoes when stdin is a terminal.
type prompter interface {
	Line(label string) (string, error)
	Secret(label string) (string, error)
}

type terminalPrompter struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

func newTerminalPrompter(in *os.File, out io.Writer) *terminalPrompter {
	fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
	return &terminalPrompter{
		in:  bufio.NewReader(in),
		fd:  fd,
		tty: term.IsTerminal(fd),
		out: out,
	}
}

func (p *terminalPrompter) Line(label string) (string, error) {
	if err := writef(p.out, "%s: ", label); err != nil {
		return "", err
	}
	return readLine(p.in)
}

func (p *terminalPrompter) Secret(label string) (string, error) {
	if err := writef(p.out, "%s: ", label); err != nil {
		return "", err
	}
	if !p.tty {
		return readLine(p.in)
	}
	b, err := term.ReadPassword(p.fd)
	if werr := writef(p.out, "\n"); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
