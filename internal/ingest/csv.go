// Package ingest parses bulk CSV uploads into records for the pipeline.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Result reports partial-count semantics: Processed rows were submitted,
// Failed rows were skipped without aborting the batch.
type Result struct {
	Processed int
	Failed    int
	Errors    []string
}

// ReadCSV reads header-mapped rows from r and submits each as a record.
// Numeric-looking cells are parsed to float64 so scoring sees numbers; other
// cells stay strings. A malformed row is counted and skipped, never fatal.
func ReadCSV(r io.Reader, submit func(map[string]any) error) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	res := &Result{}
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		raw := make(map[string]any, len(headers))
		for i, h := range headers {
			if i >= len(record) || h == "" {
				continue
			}
			raw[h] = cell(record[i])
		}
		if err := submit(raw); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		res.Processed++
	}
	return res, nil
}

func cell(s string) any {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
