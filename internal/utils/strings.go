package utils

import (
	"strings"

	"github.com/PolarWolf314/inkseal/internal/ui"
)

// FormatPaths formats a slice of paths into a readable string.
func FormatPaths(paths []string) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, path := range paths {
		b.WriteString("    - ")
		b.WriteString(ui.Path.Sprint(path))
		b.WriteString("\n")
	}
	return b.String()
}

// IsValidUsername reports whether name survives sanitization unchanged and is at least 3 characters.
func IsValidUsername(name string) bool {
	if len(name) < 3 {
		return false
	}
	return SanitizeUsername(name) == name
}
