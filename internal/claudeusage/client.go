package claudeusage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zsprackett/usagebar/internal/ansi"
	"github.com/zsprackett/usagebar/internal/ptyrun"
	"github.com/zsprackett/usagebar/internal/quota"
)

// UsageArg makes claude open straight onto its usage screen.
const UsageArg = "/usage"

// BinaryNames are tried in order, each across every search directory.
var BinaryNames = []string{"claude", "claude-bun"}

// ErrBinaryNotFound means no claude executable exists in any search directory.
var ErrBinaryNotFound = errors.New("could not find claude CLI binary")

// ParseError is returned when claude ran but its output never showed a
// usage percentage. Output is the raw capture, kept for diagnostics.
type ParseError struct {
	Output []byte
}

func (e *ParseError) Error() string {
	return "could not parse usage data from output"
}

// Report is one successful read of the usage screen.
type Report struct {
	Raw    []byte
	Clean  string
	Quotas []quota.Quota
}

// SearchDirs returns the directories claude is commonly installed into.
func SearchDirs(home string) []string {
	return []string{
		filepath.Join(home, ".local", "bin"),
		"/usr/local/bin",
		"/opt/homebrew/bin",
		"/usr/bin",
		filepath.Join(home, ".npm-global", "bin"),
		filepath.Join(home, ".nvm", "current", "bin"),
	}
}

// FindBinary returns the first executable claude in the default locations.
func FindBinary() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	return FindBinaryIn(BinaryNames, SearchDirs(home))
}

// FindBinaryIn checks every dir for names[0], then every dir for names[1],
// and so on. The first regular executable file wins.
func FindBinaryIn(names, dirs []string) (string, error) {
	for _, name := range names {
		for _, dir := range dirs {
			path := filepath.Join(dir, name)
			if isExecutable(path) {
				return path, nil
			}
		}
	}
	return "", ErrBinaryNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0111 != 0
}

// HasCompletionMarker reports whether cleaned output shows a finished usage
// screen.
func HasCompletionMarker(clean string) bool {
	return strings.Contains(clean, "% used") || strings.Contains(clean, "% left")
}

// Client reads the usage screen by driving claude on a pseudo-terminal.
type Client struct {
	runner *ptyrun.Runner
	find   func() (string, error)
	logger *slog.Logger
}

func NewClient(runner *ptyrun.Runner, logger *slog.Logger) *Client {
	return NewClientWithFinder(runner, FindBinary, logger)
}

// NewClientWithFinder creates a Client with an injectable binary lookup. Used in tests.
func NewClientWithFinder(runner *ptyrun.Runner, find func() (string, error), logger *slog.Logger) *Client {
	runner.Complete = func(output []byte) bool {
		return HasCompletionMarker(ansi.Strip(string(output)))
	}
	return &Client{runner: runner, find: find, logger: logger}
}

// Fetch runs claude /usage in dir and parses the quotas it shows. Errors are
// ErrBinaryNotFound, ptyrun.ErrPTYAllocation (wrapped), *ptyrun.TimeoutError,
// *ParseError, or a start failure.
func (c *Client) Fetch(dir string) (*Report, error) {
	path, err := c.find()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("claudeusage: running", "binary", path, "dir", dir)

	raw, err := c.runner.Run(path, []string{UsageArg}, dir)
	if err != nil {
		return nil, err
	}

	clean := ansi.Strip(string(raw))
	if !HasCompletionMarker(clean) {
		return nil, &ParseError{Output: raw}
	}
	quotas := quota.Extract(clean)
	c.logger.Debug("claudeusage: parsed", "bytes", len(raw), "quotas", len(quotas))
	return &Report{Raw: raw, Clean: clean, Quotas: quotas}, nil
}
