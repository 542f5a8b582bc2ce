package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const (
	minPasswordLength = 8
	// bcrypt ignores anything past 72 bytes.
	maxPasswordLength = 72
)

var (
	errMismatch = errors.New("passwords do not match")
	errTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errTooLong  = fmt.Errorf("password must not exceed %d bytes", maxPasswordLength)
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "hash":
		if !runHash(os.Stdin, os.Stdout, os.Stderr) {
			os.Exit(1)
		}
	case "status":
		if !showStatus(os.Stdout, os.Getenv("AUTH_PASSWORD_HASH")) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(os.Args[1]))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("MOV Converter Password Tool")
	fmt.Println("")
	fmt.Println("Usage: hashpw <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  hash    - Prompt for a password and print its bcrypt hash")
	fmt.Println("  status  - Check AUTH_PASSWORD_HASH")
}

// hashPassword validates the pair and returns a bcrypt hash of password.
func hashPassword(password, confirm []byte, cost int) (string, error) {
	if !bytes.Equal(password, confirm) {
		return "", errMismatch
	}
	if len(password) < minPasswordLength {
		return "", errTooShort
	}
	if len(password) > maxPasswordLength {
		return "", errTooLong
	}

	hash, err := bcrypt.GenerateFromPassword(password, cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func runHash(in *os.File, out, errOut io.Writer) bool {
	var password, confirm []byte
	var err error

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		password, confirm, err = promptTwice(fd, errOut)
	} else {
		password, err = readLine(in)
		confirm = password
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error reading password: %v\n", err)
		return false
	}

	hash, err := hashPassword(password, confirm, bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}

	fmt.Fprintln(out, hash)
	return true
}

func promptTwice(fd int, prompt io.Writer) ([]byte, []byte, error) {
	fmt.Fprint(prompt, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, nil, err
	}

	fmt.Fprint(prompt, "Confirm Password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return nil, nil, err
	}

	return password, confirm, nil
}

// readLine reads one line without its line ending.
func readLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}

func showStatus(out io.Writer, hash string) bool {
	if hash == "" {
		fmt.Fprintln(out, "Status: AUTH_PASSWORD_HASH not set (authentication disabled)")
		return true
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		fmt.Fprintf(out, "Status: AUTH_PASSWORD_HASH is not a valid bcrypt hash: %v\n", err)
		return false
	}

	fmt.Fprintf(out, "Status: Authentication enabled (bcrypt cost %d)\n", cost)
	return true
}
