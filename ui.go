package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// termUI satisfies library.UI on a line-oriented terminal.
type termUI struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (u *termUI) Confirm(prompt string) bool {
	fmt.Fprintf(u.out, "%s (y/N): ", prompt)
	if !u.sc.Scan() {
		fmt.Fprintln(u.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(u.sc.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

func (u *termUI) Alert(msg string) {
	fmt.Fprintln(u.out, msg)
}

// ask prints label and returns the trimmed line. ok is false on end of input.
func ask(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// askDefault is ask with a value kept when the answer is blank.
func askDefault(sc *bufio.Scanner, label, def string) (string, bool) {
	v, ok := ask(sc, fmt.Sprintf("%s [%s]: ", label, def))
	if !ok {
		return "", false
	}
	if v == "" {
		return def, true
	}
	return v, true
}

func askID(sc *bufio.Scanner, label string) (int64, bool) {
	v, ok := ask(sc, label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		fmt.Printf("Invalid ID: %s\n", v)
		return 0, false
	}
	return id, true
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID: %s", s)
	}
	return id, nil
}

// readPassword reads a password with masking. When stdin is not a terminal the
// password is read as a plain line so scripted input keeps working.
func readPassword(sc *bufio.Scanner, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		v, ok := ask(sc, prompt)
		if !ok {
			return "", io.ErrUnexpectedEOF
		}
		return v, nil
	}
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	fmt.Println() // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// truncateString shortens s to at most n runes for table cells.
func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
