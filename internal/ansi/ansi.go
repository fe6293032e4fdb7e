// Package ansi turns the byte stream of a terminal UI into text a human would
// read on screen, close enough for label and percentage matching.
package ansi

import (
	"regexp"
	"strconv"
	"strings"
)

// maxCursorForward caps how many spaces a single cursor-forward expands to.
const maxCursorForward = 4

var (
	cursorForwardRe = regexp.MustCompile(`\x1b\[(\d*)C`)

	// single-character escapes, CSI sequences, and OSC sequences terminated by
	// BEL or ESC \.
	escapeRe = regexp.MustCompile(`\x1b(?:[@-Z\\_-]|\[[0-?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\))`)
)

// Strip removes terminal control sequences from s. Cursor-forward moves become
// up to four spaces so that words drawn apart stay apart; every other
// recognised sequence is deleted. Strip is idempotent.
func Strip(s string) string {
	for {
		out := stripOnce(s)
		// Deleting a sequence can expose a new one ("\x1b\x1b[0m[C"), so repeat
		// until nothing changes. Each pass removes at least one ESC.
		if out == s {
			return out
		}
		s = out
	}
}

func stripOnce(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	s = expandCursorForward(s)
	return escapeRe.ReplaceAllString(s, "")
}

// expandCursorForward replaces matches back to front so earlier splices never
// move the offsets of matches still to be handled.
func expandCursorForward(s string) string {
	matches := cursorForwardRe.FindAllStringSubmatchIndex(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		count := 1
		if digits := s[m[2]:m[3]]; digits != "" {
			if n, err := strconv.Atoi(digits); err == nil && n > 1 {
				count = n
			}
		}
		if count > maxCursorForward {
			count = maxCursorForward
		}
		s = s[:m[0]] + strings.Repeat(" ", count) + s[m[1]:]
	}
	return s
}
