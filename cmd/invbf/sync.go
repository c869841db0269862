package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/state"
	"github.com/jfloresavalos/InvBF/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Connect and send the readings journal to the server",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect and show session, catalog and readings state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	res, err := env.Coordinator.Connect(cmd.Context())
	if err != nil {
		return err
	}
	printConnect(cmd, res)
	if res.Phase != state.PhaseActive {
		return fmt.Errorf("cannot send while %s", res.Phase)
	}

	pushed, err := env.Coordinator.Push(cmd.Context())
	if err != nil {
		return fmt.Errorf("send readings: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %d readings (%d units), push %s\n", pushed.Records, pushed.Quantity, pushed.PushID)
	if !pushed.Clean {
		fmt.Fprintln(out, "Readings changed during the send and are still pending.")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	res, err := env.Coordinator.Connect(cmd.Context())
	if err != nil {
		return err
	}
	printConnect(cmd, res)

	out := cmd.OutOrStdout()
	snap := env.State.Snapshot()
	fmt.Fprintf(out, "Device:   %s\n", env.Coordinator.Device())
	fmt.Fprintf(out, "Catalog:  %d products from %s", snap.CatalogSize, snap.CatalogSource)
	if snap.CatalogStale {
		fmt.Fprint(out, " (stale)")
	}
	fmt.Fprintln(out)

	j := env.Coordinator.Journal()
	if j == nil {
		fmt.Fprintln(out, "Readings: none")
		return nil
	}
	totals, sync := j.Totals(), j.State()
	fmt.Fprintf(out, "Readings: %d records, %d units (%d scanner, %d manual)\n",
		totals.Records, totals.Quantity, totals.Scanner, totals.Manual)
	switch {
	case sync.Pending:
		fmt.Fprintln(out, "Sync:     unsent changes")
	case sync.LastSync.IsZero():
		fmt.Fprintln(out, "Sync:     never sent")
	default:
		fmt.Fprintf(out, "Sync:     sent %s\n", sync.LastSync.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printConnect(cmd *cobra.Command, res syncer.ConnectResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Phase:    %s\n", res.Phase)
	if res.Session.ID != 0 {
		fmt.Fprintf(out, "Session:  #%d %s\n", res.Session.ID, res.Session.Name)
	}
	if res.BaselineUsed {
		fmt.Fprintln(out, "Readings restored from the server.")
	}
	if res.Cause != nil {
		fmt.Fprintf(out, "Offline:  %v\n", res.Cause)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}
}
