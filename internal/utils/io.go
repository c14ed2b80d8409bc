package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadPasswordStdin reads every line of stdin as one password each.
// Returns an error if stdin is a terminal (no piped data) or nothing was piped.
func ReadPasswordStdin() ([]string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat stdin: %w", err)
	}

	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, fmt.Errorf("no data provided on stdin (hint: pipe your password to this command)")
	}

	return ReadPasswordLines(os.Stdin)
}

// ReadPasswordLines reads r line by line. Empty lines are rejected.
func ReadPasswordLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			return nil, fmt.Errorf("password on line %d is empty", len(lines)+1)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("password is empty")
	}
	return lines, nil
}
