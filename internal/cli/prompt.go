package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter спрашивает недостающие значения у пользователя.
type Prompter interface {
	Input(prompt string) (string, error)
	Password(prompt string) (string, error)
}

// TerminalPrompter читает из stdin; пароль читается без эха, если stdin является терминалом.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter создает Prompter поверх stdin и stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (p *TerminalPrompter) Input(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) Password(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.Input(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *app) prompter() Prompter {
	if a.opts.Prompter == nil {
		a.opts.Prompter = NewTerminalPrompter()
	}
	return a.opts.Prompter
}

// ask возвращает value, если оно задано флагом, иначе спрашивает.
func (a *app) ask(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompter().Input(prompt)
}

func (a *app) askPassword(value, prompt string, confirm bool) (string, error) {
	if value != "" {
		return value, nil
	}
	pw, err := a.prompter().Password(prompt)
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := a.prompter().Password("Confirm password: ")
		if err != nil {
			return "", err
		}
		if pw != again {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	return pw, nil
}
