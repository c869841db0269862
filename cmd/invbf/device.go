package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device [name]",
	Short: "Show or change this device's name",
	Long: `Device prints the name readings are sent under. With an argument it
renames the device. On controlled hardware the name is locked after the first
send and cannot be changed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDevice,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	if len(args) == 1 {
		if err := env.Coordinator.SetDevice(args[0]); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), env.Coordinator.Device())
	return nil
}
