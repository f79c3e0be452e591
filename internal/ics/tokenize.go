package ics

import "strings"

// unfoldLines splits raw feed text into logical content lines, reversing
// RFC 5545 line folding. Physical lines are separated by CR, LF or CRLF.
// A physical line that starts with a single space or tab continues the
// previous logical line: the leading whitespace character is stripped and
// the remainder is appended to a pending buffer. The buffer is flushed as
// one logical line the moment a non-continuation line (including
// BEGIN:/END: markers) or end-of-input is reached.
func unfoldLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")

	logical := make([]string, 0, len(raw))
	pending := ""
	havePending := false

	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			// Continuation. A leading continuation with nothing to
			// continue starts its own logical line.
			pending += line[1:]
			havePending = true
			continue
		}
		if havePending {
			logical = append(logical, pending)
		}
		pending = line
		havePending = true
	}
	if havePending {
		logical = append(logical, pending)
	}

	return logical
}
