package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ParquetExporter writes execution history to Parquet files on disk for
// offline analysis.
type ParquetExporter struct {
	DataDir string
}

// NewParquetExporter creates an exporter rooted at the given data directory.
func NewParquetExporter(dataDir string) *ParquetExporter {
	return &ParquetExporter{DataDir: dataDir}
}

// ExecutionRecord is the Parquet schema for execution history.
type ExecutionRecord struct {
	VenueID     string  `parquet:"venue_id"`
	Symbol      string  `parquet:"symbol"`
	Timestamp   int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Size        float64 `parquet:"size"`
	Price       float64 `parquet:"price"`
	Closed      float64 `parquet:"closed"`
	ClosedValue float64 `parquet:"closed_value"`
	ClosedComm  float64 `parquet:"closed_comm"`
	Opened      float64 `parquet:"opened"`
	OpenedValue float64 `parquet:"opened_value"`
	OpenedComm  float64 `parquet:"opened_comm"`
	Margin      float64 `parquet:"margin"`
	PnL         float64 `parquet:"pnl"`
	PosSize     float64 `parquet:"pos_size"`
	PosPrice    float64 `parquet:"pos_price"`
}

// Export writes execution rows to Parquet files organized by symbol and
// year. Each symbol+year combination produces a separate file at:
//
//	<DataDir>/executions/<SYMBOL>/<YYYY>.parquet
//
// Existing files are merged; rows are deduplicated by (venue ID, timestamp).
func (e *ParquetExporter) Export(rows []ExecutionRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]ExecutionRecord)
	for _, r := range rows {
		k := key{symbol: r.Symbol, year: r.Time.Year()}
		groups[k] = append(groups[k], ExecutionRecord{
			VenueID:     r.VenueID,
			Symbol:      r.Symbol,
			Timestamp:   r.Time.UnixMilli(),
			Size:        r.Size,
			Price:       r.Price,
			Closed:      r.Closed,
			ClosedValue: r.ClosedValue,
			ClosedComm:  r.ClosedCommission,
			Opened:      r.Opened,
			OpenedValue: r.OpenedValue,
			OpenedComm:  r.OpenedCommission,
			Margin:      r.Margin,
			PnL:         r.PnL,
			PosSize:     r.PositionSize,
			PosPrice:    r.PositionPrice,
		})
	}

	for k, records := range groups {
		path := e.executionPath(k.symbol, k.year)

		existing, _ := readParquetFile[ExecutionRecord](path)
		merged := mergeExecutionRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing executions for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// Read reads execution history for the given symbol and time range.
func (e *ParquetExporter) Read(symbol string, start, end time.Time) ([]ExecutionRow, error) {
	var rows []ExecutionRow
	for year := start.Year(); year <= end.Year(); year++ {
		path := e.executionPath(symbol, year)

		records, err := readParquetFile[ExecutionRecord](path)
		if err != nil {
			// File doesn't exist for this year — skip.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				row := ExecutionRow{VenueID: r.VenueID, Symbol: r.Symbol}
				row.Time = ts
				row.Size = r.Size
				row.Price = r.Price
				row.Closed = r.Closed
				row.ClosedValue = r.ClosedValue
				row.ClosedCommission = r.ClosedComm
				row.Opened = r.Opened
				row.OpenedValue = r.OpenedValue
				row.OpenedCommission = r.OpenedComm
				row.Margin = r.Margin
				row.PnL = r.PnL
				row.PositionSize = r.PosSize
				row.PositionPrice = r.PosPrice
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

// ListSymbols lists all symbols that have exported execution history.
func (e *ParquetExporter) ListSymbols() ([]string, error) {
	dir := filepath.Join(e.DataDir, "executions")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, en := range entries {
		if en.IsDir() {
			symbols = append(symbols, en.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// executionPath returns the filesystem path for an execution Parquet file.
// Layout: <dataDir>/executions/<SYMBOL>/<YYYY>.parquet
func (e *ParquetExporter) executionPath(symbol string, year int) string {
	return filepath.Join(e.DataDir, "executions", strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeExecutionRecords deduplicates records by (venue ID, timestamp),
// preferring new records over existing ones. Results are sorted by timestamp.
func mergeExecutionRecords(existing, incoming []ExecutionRecord) []ExecutionRecord {
	type key struct {
		venueID string
		ts      int64
	}
	seen := make(map[key]ExecutionRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.VenueID, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.VenueID, r.Timestamp}] = r
	}

	merged := make([]ExecutionRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
