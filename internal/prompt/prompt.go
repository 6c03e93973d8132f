// Package prompt reads interactive input for the admin console and the chat
// client.
package prompt

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/jimrelay/internal/common"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordMismatch = errors.New("passwords do not match")

// Line prints prompt to w and reads one line from reader with surrounding
// space trimmed. A last line without newline is returned as is.
//
//	Prompt text
//	> _
func Line(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password reads a password from the terminal without echo.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func Password(w io.Writer, label string) ([]byte, error) {
	if _, err := fmt.Fprint(w, label+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// NewPassword asks for a password twice and fails with ErrPasswordMismatch
// when the entries differ. Empty passwords are refused.
func NewPassword(w io.Writer) ([]byte, error) {
	first, err := Password(w, "Enter password")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("empty password")
	}
	second, err := Password(w, "Repeat password")
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		common.WipeByteArray(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}
