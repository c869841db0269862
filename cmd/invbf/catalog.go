package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the local product catalog",
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Check the server catalog version and download it when it changed",
	Args:  cobra.NoArgs,
	RunE:  runCatalogRefresh,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Replace the local catalog with a spreadsheet",
	Long: `Import reads the first sheet of an xlsx workbook. The header row must
name a SKU column; ALU, description, model, supplier and season columns are
optional. Rows without a SKU are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search the local catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogSearch,
}

var (
	searchSupplier string
	searchSeason   string
	searchLimit    int
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogSearchCmd.Flags().StringVar(&searchSupplier, "supplier", "", "only this supplier")
	catalogSearchCmd.Flags().StringVar(&searchSeason, "season", "", "only this season")
	catalogSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results")
}

func runCatalogRefresh(cmd *cobra.Command, args []string) error {
	opts := appOptions()
	opts.Progress = func(size int64) io.Writer {
		return progressbar.DefaultBytes(size, "catalog")
	}
	env, closeEnv, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer closeEnv()

	res, err := env.Cache.Sync(cmd.Context())
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	out := cmd.OutOrStdout()
	if res.Warning != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.Warning)
	}
	switch {
	case res.Downloaded:
		fmt.Fprintf(out, "Downloaded %d products (hash %s)\n", res.Snapshot.Len(), res.Snapshot.Hash())
	case res.Stale:
		fmt.Fprintf(out, "Kept %d cached products; the server catalog could not be fetched\n", res.Snapshot.Len())
	default:
		fmt.Fprintf(out, "Catalog is current: %d products\n", res.Snapshot.Len())
	}
	return nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rows, err := catalog.ReadSpreadsheet(f)
	if err != nil {
		return err
	}
	report, err := catalog.IngestRows(rows)
	if err != nil {
		return err
	}

	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	snap, err := env.Cache.Import(report.Entries)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products, skipped %d rows\n", snap.Len(), report.Skipped)
	return nil
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	env, closeEnv, err := openEnv(appOptions())
	if err != nil {
		return err
	}
	defer closeEnv()

	if !env.Cache.Restore() {
		return fmt.Errorf("no catalog on this device; run 'invbf catalog refresh' or 'invbf catalog import'")
	}
	q := catalog.Query{Supplier: searchSupplier, Season: searchSeason, Limit: searchLimit}
	if len(args) == 1 {
		q.Text = args[0]
	}
	out := cmd.OutOrStdout()
	results := env.Cache.Snapshot().Search(q)
	for _, e := range results {
		fmt.Fprintf(out, "%-14s %-14s %s\n", e.SKU, e.ALU, e.Description)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "No matches")
	}
	return nil
}
