package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ConsolePrompter asks questions on a terminal or any reader/writer pair.
// Passwords are read without echo when In is a terminal.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer

	r *bufio.Reader
}

// NewConsolePrompter returns a prompter reading from in and writing to out
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{In: in, Out: out}
}

func (p *ConsolePrompter) reader() *bufio.Reader {
	if p.r == nil {
		p.r = bufio.NewReader(p.In)
	}
	return p.r
}

func (p *ConsolePrompter) readLine() (string, error) {
	line, err := p.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password implements Prompter
func (p *ConsolePrompter) Password(purpose, target string) (string, error) {
	fmt.Fprintf(p.Out, "Please enter the %s password to use on %s.\n", purpose, target)
	fmt.Fprintf(p.Out, "   It can be empty, or have a maximum of %d characters:\n", maxPasswordLength)

	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.readLine()
}

// Filename implements Prompter
func (p *ConsolePrompter) Filename(message string) (string, error) {
	fmt.Fprintln(p.Out, message)
	return p.readLine()
}

// Confirm implements Prompter; only an answer starting with y or Y is a yes
func (p *ConsolePrompter) Confirm(message string) (bool, error) {
	fmt.Fprintln(p.Out, message)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(line, "y") || strings.HasPrefix(line, "Y"), nil
}
