package params

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// LoadTable reads a CSV parameter table with a header row. Columns that are blank in
// every row are dropped.
func LoadTable(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter table: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in parameter table")
	}

	header := records[0]
	used := make([]bool, len(header))
	for _, record := range records[1:] {
		for i := range header {
			if i < len(record) && strings.TrimSpace(record[i]) != "" {
				used[i] = true
			}
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			col = strings.TrimSpace(col)
			if !used[i] || col == "" {
				continue
			}
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// SheetURL returns the CSV export URL of a Google Sheets tab
func SheetURL(sheetID, sheetName string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/gviz/tq?tqx=out:csv&sheet=%s",
		url.PathEscape(sheetID), url.QueryEscape(sheetName))
}

// FetchTable downloads and parses a CSV parameter table
func FetchTable(ctx context.Context, tableURL string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tableURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build table request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parameter table: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch parameter table: %s", resp.Status)
	}
	return LoadTable(resp.Body)
}

// ReadTable loads a parameter table from an http(s) URL or a local CSV file
func ReadTable(ctx context.Context, source string) ([]Row, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return FetchTable(ctx, source)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open parameter table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}
