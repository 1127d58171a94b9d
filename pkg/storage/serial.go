package storage

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNotFound indicates that a requested task or memory does not exist.
var ErrNotFound = errors.New("record not found")

// ProjectCode derives the serial prefix from a project name: the first four
// alphanumeric characters, uppercased. Empty or fully non-alphanumeric
// projects map to "GEN".
func ProjectCode(project string) string {
	code := make([]rune, 0, 4)
	for _, r := range project {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			code = append(code, unicode.ToUpper(r))
			if len(code) == 4 {
				break
			}
		}
	}
	if len(code) == 0 {
		return "GEN"
	}
	return string(code)
}

// CategoryCode derives the one-letter category code used in serials.
// Unknown categories use their first letter, uppercased; empty maps to "T".
func CategoryCode(category string) string {
	switch strings.ToLower(category) {
	case "code":
		return "C"
	case "research":
		return "R"
	case "integration":
		return "I"
	case "data":
		return "D"
	case "workflow":
		return "W"
	}
	for _, r := range category {
		if unicode.IsLetter(r) {
			return strings.ToUpper(string(r))
		}
	}
	return "T"
}

// FormatSerial renders a serial for (project, category) with the given
// per-scope sequence number, e.g. FormatSerial("webapp", "code", 7)
// returns "WEBA-C0007".
func FormatSerial(project, category string, seq int64) string {
	return fmt.Sprintf("%s-%s%04d", ProjectCode(project), CategoryCode(category), seq)
}
