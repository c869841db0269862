package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jfloresavalos/InvBF/internal/catalog"
	"github.com/jfloresavalos/InvBF/internal/fakeauthority"
	"github.com/jfloresavalos/InvBF/internal/inventory"
	"github.com/jfloresavalos/InvBF/internal/logging"
)

var fakeAuthorityCmd = &cobra.Command{
	Use:    "fake-authority",
	Short:  "Serve an in-memory inventory server for trials",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE:   runFakeAuthority,
}

var (
	fakeAddr    string
	fakeSession string
	fakeCatalog string
)

func init() {
	rootCmd.AddCommand(fakeAuthorityCmd)
	fakeAuthorityCmd.Flags().StringVar(&fakeAddr, "addr", "127.0.0.1:8080", "listen address")
	fakeAuthorityCmd.Flags().StringVar(&fakeSession, "session", "", "open an inventory session with this name")
	fakeAuthorityCmd.Flags().StringVar(&fakeCatalog, "catalog", "", "xlsx catalog to serve")
}

func runFakeAuthority(cmd *cobra.Command, args []string) error {
	closeLog, err := logging.Init(logging.Options{Level: "debug", Stderr: true})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	gin.SetMode(gin.ReleaseMode)
	srv := fakeauthority.New()

	var entries []inventory.CatalogEntry
	if fakeCatalog != "" {
		entries, err = loadCatalogFile(fakeCatalog)
		if err != nil {
			return err
		}
		hash := srv.SetCatalog(entries)
		log.Info().Int("entries", len(entries)).Str("hash", hash).Msg("catalog loaded")
	}
	if fakeSession != "" {
		session := &inventory.Session{ID: 1, Name: fakeSession}
		srv.SetSession(session)
		if len(entries) > 0 {
			srv.SetStock(session.ID, stockFromCatalog(entries))
		}
	}

	httpSrv := &http.Server{
		Addr:              fakeAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.Info().Str("addr", fakeAddr).Msg("fake authority listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-cmd.Context().Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadCatalogFile(path string) ([]inventory.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	rows, err := catalog.ReadSpreadsheet(f)
	if err != nil {
		return nil, err
	}
	report, err := catalog.IngestRows(rows)
	if err != nil {
		return nil, err
	}
	return report.Entries, nil
}

// stockFromCatalog expects one unit of every product, which is enough to
// exercise the monitor's differences.
func stockFromCatalog(entries []inventory.CatalogEntry) []inventory.StockItem {
	items := make([]inventory.StockItem, 0, len(entries))
	for i, e := range entries {
		items = append(items, inventory.StockItem{
			ID:          int64(i + 1),
			SKU:         e.SKU,
			ALU:         e.ALU,
			Description: e.Description,
			Model:       e.Model,
			Supplier:    e.Supplier,
			Season:      e.Season,
			Expected:    1,
		})
	}
	return items
}
