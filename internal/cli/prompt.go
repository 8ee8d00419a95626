package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword
var readPassword = term.ReadPassword

// Prompter asks the user for input
type Prompter interface {
	Prompt(label string) (string, error)
	Password(label string) (string, error)
}

// TermPrompter reads from the terminal, without echo for passwords
type TermPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func NewTermPrompter(in *os.File, out io.Writer) *TermPrompter {
	return &TermPrompter{in: bufio.NewReader(in), out: out, fd: int(in.Fd())}
}

// Prompt reads one trimmed line
func (p *TermPrompter) Prompt(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a line without echoing it
func (p *TermPrompter) Password(label string) (string, error) {
	if _, err := fmt.Fprint(p.out, label+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
