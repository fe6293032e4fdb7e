package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/usagebar/internal/ui/dialogs"
	"github.com/zsprackett/usagebar/internal/usage"
	"github.com/zsprackett/usagebar/internal/usagepoller"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Fetch usage once and print it",
	Long: `Run claude /usage once in the configured working folder (or --dir) and print
the result. Output is JSON when --json is given or stdout is not a terminal.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
	onceCmd.Flags().String("dir", "", "working folder to run claude in (default: the saved folder)")
	onceCmd.Flags().Bool("json", false, "print JSON")
}

// fixedDir is a DirStore for a folder given on the command line.
type fixedDir string

func (d fixedDir) WorkingDirectory() (string, error) { return string(d), nil }

func (d fixedDir) SetWorkingDirectory(string) error {
	return errors.New("working directory given on the command line")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	errOut := cmd.ErrOrStderr()
	cfg := loadConfig(errOut)
	logger, closer := initLogger(cfg, errOut, true)
	defer closer.Close()
	durs, err := cfg.Durations()
	if err != nil {
		logger.Warn("invalid durations in config, using defaults", "err", err)
	}

	dirFlag, _ := cmd.Flags().GetString("dir")
	asJSON, _ := cmd.Flags().GetBool("json")

	var dirs usagepoller.DirStore
	if dirFlag != "" {
		dir, err := dialogs.ValidateDir(dirFlag)
		if err != nil {
			return err
		}
		dirs = fixedDir(dir)
	} else {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()
		dirs = store
	}

	p := newPoller(cfg, durs, dirs, usagepoller.Options{}, logger)
	fetchErr := p.FetchNow()
	if errors.Is(fetchErr, usagepoller.ErrNotConfigured) {
		return fmt.Errorf("%w: run \"usagebar set-dir DIR\" or pass --dir", fetchErr)
	}

	out := cmd.OutOrStdout()
	if asJSON || !isTerminal(out) {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p.State()); err != nil {
			return err
		}
	} else {
		writeSummary(out, p.State(), time.Now())
	}
	return fetchErr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeSummary prints the human-readable form of st.
func writeSummary(w io.Writer, st usage.State, now time.Time) {
	snap := st.Snapshot
	if snap.HasData {
		fmt.Fprintf(w, "Session: %3.0f%% used\n", snap.SessionFraction*100)
		fmt.Fprintf(w, "Week:    %3.0f%% used\n", snap.WeeklyFraction*100)
		if len(snap.Quotas) > 0 {
			fmt.Fprintln(w)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "QUOTA\tLEFT\n")
			for _, q := range snap.Quotas {
				fmt.Fprintf(tw, "%s\t%.0f%%\n", dialogs.QuotaLabel(q), q.PercentRemaining)
			}
			tw.Flush()
		}
		fmt.Fprintf(w, "\nUpdated %s\n", humanize.RelTime(snap.CapturedAt, now, "ago", "from now"))
	}
	if e := st.LastError; e != nil {
		fmt.Fprintf(w, "Error: %s (%s)\n", e.Message, e.Kind)
		for _, l := range dialogs.ReadableLines(e.Output) {
			fmt.Fprintf(w, "  | %s\n", l)
		}
	}
}
