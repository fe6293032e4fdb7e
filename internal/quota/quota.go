// Package quota pulls named usage quotas out of the cleaned text of the
// claude /usage screen. The screen is meant for people, so matching is by
// label proximity rather than by any structure.
package quota

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind int

const (
	KindSession Kind = iota
	KindWeekly
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindWeekly:
		return "weekly"
	case KindModel:
		return "model"
	default:
		return "unknown"
	}
}

// Quota is one labelled allowance found on screen. Model is set only for
// KindModel.
type Quota struct {
	Kind             Kind    `json:"kind"`
	Model            string  `json:"model,omitempty"`
	PercentRemaining float64 `json:"percent_remaining"`
}

type label struct {
	pattern string
	kind    Kind
	model   string
}

// labels are matched in order against the lowercased line; the first hit
// wins, so longer labels sit before their prefixes.
var labels = []label{
	{"current session", KindSession, ""},
	{"current week (all models)", KindWeekly, ""},
	{"current week (opus only)", KindModel, "opus"},
	{"current week (opus)", KindModel, "opus"},
	{"current week (sonnet only)", KindModel, "sonnet"},
	{"current week (sonnet)", KindModel, "sonnet"},
	{"opus usage", KindModel, "opus"},
	{"sonnet usage", KindModel, "sonnet"},
}

// windowLines is the label line plus the four lines after it.
const windowLines = 5

var percentRe = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(used|left)`)

// Extract scans text line by line and returns one Quota per label occurrence
// that has a percentage expression within its window. Repeated labels yield
// repeated quotas.
func Extract(text string) []Quota {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	var quotas []Quota
	for i, line := range lines {
		l, ok := matchLabel(line)
		if !ok {
			continue
		}
		end := min(i+windowLines, len(lines))
		// A following label owns the lines from there on.
		for j := i + 1; j < end; j++ {
			if _, next := matchLabel(lines[j]); next {
				end = j
				break
			}
		}
		remaining, ok := ParsePercentage(strings.Join(lines[i:end], "\n"))
		if !ok {
			continue
		}
		quotas = append(quotas, Quota{Kind: l.kind, Model: l.model, PercentRemaining: remaining})
	}
	return quotas
}

func matchLabel(line string) (label, bool) {
	lower := strings.ToLower(line)
	for _, l := range labels {
		if strings.Contains(lower, l.pattern) {
			return l, true
		}
	}
	return label{}, false
}

// ParsePercentage finds the first "N% used" or "N% left" in text and returns
// the percentage remaining, clamped to [0, 100].
func ParsePercentage(text string) (float64, bool) {
	m := percentRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	remaining := float64(n)
	if strings.EqualFold(m[2], "used") {
		remaining = 100 - remaining
	}
	return max(0, min(100, remaining)), true
}
