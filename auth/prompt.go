package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNoCredentials = errors.New("no credentials supplied")

// CredentialProvider supplies the username and password used to renew the
// session credential.
type CredentialProvider interface {
	Credentials(ctx context.Context) (username, password string, err error)
}

// StaticCredentials returns a fixed username and password.
type StaticCredentials struct {
	Username string
	Password string
}

func (c StaticCredentials) Credentials(context.Context) (string, string, error) {
	if c.Username == "" {
		return "", "", ErrNoCredentials
	}
	return c.Username, c.Password, nil
}

// TerminalPrompt asks for the username with echo and the password without.
// When in is not a terminal the password is read as a plain line.
type TerminalPrompt struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func NewTerminalPrompt(in io.Reader, out io.Writer) *TerminalPrompt {
	return &TerminalPrompt{
		in:     in,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (p *TerminalPrompt) Credentials(ctx context.Context) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	fmt.Fprint(p.out, "Enter Earthdata username: ")
	username, err := p.readLine()
	if err != nil {
		return "", "", fmt.Errorf("read username: %w", err)
	}
	if username == "" {
		return "", "", ErrNoCredentials
	}

	fmt.Fprint(p.out, "Enter Earthdata password: ")
	password, err := p.readPassword()
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}

	return username, password, nil
}

func (p *TerminalPrompt) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *TerminalPrompt) readPassword() (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	return p.readLine()
}
