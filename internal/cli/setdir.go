package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zsprackett/usagebar/internal/ui/dialogs"
)

var setDirCmd = &cobra.Command{
	Use:   "set-dir DIR",
	Short: "Save the folder claude is run in",
	Long: `Save the working folder used for every fetch. claude asks whether to trust
each new folder, so pick one where you have already run claude.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetDir,
}

func init() {
	rootCmd.AddCommand(setDirCmd)
}

func runSetDir(cmd *cobra.Command, args []string) error {
	dir, err := dialogs.ValidateDir(args[0])
	if err != nil {
		return err
	}
	store, err := openDB()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SetWorkingDirectory(dir); err != nil {
		return fmt.Errorf("save working directory: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Working folder set to %s\n", dir)
	return nil
}
