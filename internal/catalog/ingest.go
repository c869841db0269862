package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// UnnamedLabel is the description given to rows without one.
const UnnamedLabel = "Unnamed product"

// Header spellings accepted for each column. The identifier column is
// mandatory; the rest are optional.
var (
	idHeader          = regexp.MustCompile(`(?i)cod|isbn|ean|sku`)
	descriptionHeader = regexp.MustCompile(`(?i)desc|nomb|name|prod`)
	aluHeader         = regexp.MustCompile(`(?i)alu|barra|upc`)
	modelHeader       = regexp.MustCompile(`(?i)model`)
	supplierHeader    = regexp.MustCompile(`(?i)prov|supplier|vendor`)
	seasonHeader      = regexp.MustCompile(`(?i)temp|season`)
)

var validate = validator.New()

// IngestReport summarizes an ingestion run.
type IngestReport struct {
	Entries []inventory.CatalogEntry
	// Skipped counts rows with a blank identifier or that failed validation.
	Skipped int
}

// ReadSpreadsheet reads the first sheet of an xlsx workbook.
func ReadSpreadsheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &inventory.ValidationError{Field: "workbook", Reason: "no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// IngestRows maps a header row plus data rows into catalog entries. A missing
// identifier column fails the whole run with a ValidationError.
func IngestRows(rows [][]string) (IngestReport, error) {
	if len(rows) == 0 {
		return IngestReport{}, &inventory.ValidationError{Field: "header", Reason: "sheet is empty"}
	}
	header := rows[0]
	idCol := findColumn(header, idHeader, -1)
	if idCol < 0 {
		return IngestReport{}, &inventory.ValidationError{
			Field:  "header",
			Reason: "no identifier column (expected one of cod, isbn, ean, sku)",
		}
	}
	descCol := findColumn(header, descriptionHeader, idCol)
	aluCol := findColumn(header, aluHeader, idCol)
	modelCol := findColumn(header, modelHeader, idCol)
	supplierCol := findColumn(header, supplierHeader, idCol)
	seasonCol := findColumn(header, seasonHeader, idCol)

	var report IngestReport
	for i, row := range rows[1:] {
		sku := cell(row, idCol)
		if sku == "" {
			report.Skipped++
			continue
		}
		entry := inventory.CatalogEntry{
			SKU:         sku,
			ALU:         cell(row, aluCol),
			Description: cell(row, descCol),
			Model:       cell(row, modelCol),
			Supplier:    cell(row, supplierCol),
			Season:      cell(row, seasonCol),
		}
		if entry.Description == "" {
			entry.Description = UnnamedLabel
		}
		if err := validate.Struct(entry); err != nil {
			log.Debug().Err(err).Int("row", i+2).Msg("ingest row rejected")
			report.Skipped++
			continue
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

func findColumn(header []string, pattern *regexp.Regexp, exclude int) int {
	for i, h := range header {
		if i == exclude {
			continue
		}
		if pattern.MatchString(strings.TrimSpace(h)) {
			return i
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// LocalHash fingerprints locally ingested entries. The "local-" prefix keeps it
// from ever matching an authority hash, so the next online sync replaces it.
func LocalHash(entries []inventory.CatalogEntry) string {
	raw, err := json.Marshal(entries)
	if err != nil {
		return "local-0"
	}
	return "local-" + strconv.FormatUint(xxhash.Sum64(raw), 16)
}
