package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Record codes read line by line from a scanner or file",
	Long: `Scan connects, then records one code per line from --input or stdin.
Blank lines and lines starting with # are ignored. With auto-accept each
known code is recorded as one unit; otherwise a repeated code stays pending
and is recorded when a different code arrives or input ends.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanInput    string
	scanLocation string
	scanAuto     bool
	scanPush     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanInput, "input", "i", "", "file of codes (default stdin)")
	scanCmd.Flags().StringVarP(&scanLocation, "location", "l", "", "location stamped on readings, overrides preferences")
	scanCmd.Flags().BoolVar(&scanAuto, "auto", false, "record each known code immediately")
	scanCmd.Flags().BoolVar(&scanPush, "push", false, "send the journal when input ends")
}

func runScan(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if scanInput != "" && scanInput != "-" {
		f, err := os.Open(scanInput)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

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
	if !res.Phase.CanRecord() {
		return fmt.Errorf("cannot record while %s", res.Phase)
	}

	if cmd.Flags().Changed("auto") {
		env.Scanner.SetAutoAccept(scanAuto)
	}
	if scanLocation != "" {
		env.Scanner.SetLocation(scanLocation)
	}

	out := cmd.OutOrStdout()
	var committed, failed int
	err = env.Scanner.Run(cmd.Context(), in, func(r scan.Result, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Code, err)
			return
		}
		for _, c := range r.Committed {
			committed++
			fmt.Fprintf(out, "+%d %s %s\n", c.Quantity, c.Product.SKU, c.Product.Description)
		}
		if r.Pending && !r.Found {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not in catalog\n", r.Code)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded %d readings, %d failed\n", committed, failed)

	if !scanPush {
		return nil
	}
	pushed, err := env.Coordinator.Push(cmd.Context())
	if err != nil {
		return fmt.Errorf("send readings: %w", err)
	}
	fmt.Fprintf(out, "Sent %d readings (%d units)\n", pushed.Records, pushed.Quantity)
	return nil
}
