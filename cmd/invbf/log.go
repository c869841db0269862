package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/logging"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the operational log, or the debug log with --debug",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

var (
	logLines int
	logDebug bool
	logLevel string
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 50, "number of entries")
	logCmd.Flags().BoolVar(&logDebug, "debug", false, "show the debug log file instead")
	logCmd.Flags().StringVar(&logLevel, "level", "debug", "minimum debug log level")
}

func runLog(cmd *cobra.Command, args []string) error {
	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	out := cmd.OutOrStdout()
	if logDebug {
		lines, err := logging.Tail(env.Config.LogPath(), logLines, logLevel)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
		return nil
	}

	for _, e := range env.OpLog.Entries(logLines) {
		fmt.Fprintf(out, "%s %s [%s] %s", e.Date, e.Time, e.Type, e.Message)
		if e.Device != "" {
			fmt.Fprintf(out, " (%s)", e.Device)
		}
		fmt.Fprintln(out)
	}
	return nil
}
