package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/app"
)

var (
	configPath string
	prefsPath  string
	serverAddr string
	deviceName string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "invbf",
	Short: "Offline-first inventory counting client",
	Long: `invbf counts stock against a central inventory server and keeps working
when the network drops. Readings stay on this device until they are sent.

Run without a subcommand to open the counting terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), appOptions())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.config/invbf/config.toml)")
	flags.StringVar(&prefsPath, "prefs", "", "preferences file (default ~/.config/invbf/prefs.toml)")
	flags.StringVar(&serverAddr, "server", "", "inventory server host:port, overrides config")
	flags.StringVar(&deviceName, "device", "", "device name, overrides config")
	flags.BoolVarP(&verbose, "verbose", "v", false, "mirror the debug log to stderr")
}

func appOptions() app.Options {
	return app.Options{
		ConfigPath: configPath,
		PrefsPath:  prefsPath,
		Server:     serverAddr,
		Device:     deviceName,
		Headless:   verbose,
	}
}

// openEnv wires the core for a headless command; the caller closes it.
func openEnv(opts app.Options) (*app.Env, func(), error) {
	env, err := app.Open(opts)
	if err != nil {
		return nil, nil, err
	}
	return env, func() {
		if err := env.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "invbf: close: %v\n", err)
		}
	}, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "invbf: %v\n", err)
		return 1
	}
	return 0
}
