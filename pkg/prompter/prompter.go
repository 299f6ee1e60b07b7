package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from a terminal or any reader.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// New reads from in and writes labels to out. Secrets are echoed because in
// is not a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
}

// Stdio prompts on the process terminal.
func Stdio() *Prompter {
	return &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr, fd: int(os.Stdin.Fd())}
}

// String prompts user for a string input
func (p *Prompter) String(label string) (string, error) {
	fmt.Fprint(p.out, label)
	input, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// Secret prompts for a value without echoing it when stdin is a terminal.
func (p *Prompter) Secret(label string) (string, error) {
	if p.fd < 0 || !term.IsTerminal(p.fd) {
		return p.String(label)
	}
	fmt.Fprint(p.out, label)

	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out) // New line after hidden input
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm prompts user for yes/no confirmation
func (p *Prompter) Confirm(label string) (bool, error) {
	answer, err := p.String(label + " (y/n) ")
	if err != nil {
		return false, err
	}
	response := strings.ToLower(answer)
	return response == "y" || response == "yes", nil
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
