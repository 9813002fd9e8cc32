package testutil

import (
	"strings"
)

// Undent removes the common leading indentation of s so that YAML documents
// can be inlined in tests at the indentation of the surrounding code. A
// leading newline is dropped, and so is a last line holding only whitespace:
//
//	Undent(`
//		sources:
//		- name: eu
//	`)
//
// returns "sources:\n- name: eu\n". Blank lines do not count towards the
// common indentation.
func Undent(s string) string {
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")
	if last := lines[len(lines)-1]; strings.TrimSpace(last) == "" {
		lines[len(lines)-1] = ""
	}

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent == -1 || n < indent {
			indent = n
		}
	}

	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
