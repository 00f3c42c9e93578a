package deepdash

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// ErrBadTimestamp marks a record whose timestamp attribute is missing or
// not interpretable as integer epoch seconds. One bad record fails the
// whole export; there is deliberately no per-record isolation.
var ErrBadTimestamp = errors.New("record timestamp is missing or not an integer")

// normalizeTimestamps rewrites each record's timestamp attribute in place,
// from epoch seconds to a formatted UTC string.
func normalizeTimestamps(records []models.DetectionRecord) error {
	for i, record := range records {
		formatted, err := formatEpoch(record["timestamp"])
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		record["timestamp"] = formatted
	}
	return nil
}

// formatEpoch converts an epoch-seconds value to the display layout.
// Numbers arrive as float64 from JSON decoding and from the DynamoDB
// attribute unmarshaller; strings holding an integer are accepted too.
func formatEpoch(value interface{}) (string, error) {
	var seconds int64
	switch v := value.(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case int:
		seconds = int64(v)
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrBadTimestamp, v.String())
		}
		seconds = parsed
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrBadTimestamp, v)
		}
		seconds = parsed
	default:
		return "", fmt.Errorf("%w: %v", ErrBadTimestamp, value)
	}
	return time.Unix(seconds, 0).UTC().Format(timeLayout), nil
}

// buildCSV serializes the records: header row is the union of field names
// across the batch in sorted order, one data row per record, missing fields
// rendered empty. Output is deterministic for unchanged input.
func buildCSV(records []models.DetectionRecord) ([]byte, error) {
	header := fieldUnion(records)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	row := make([]string, len(header))
	for _, record := range records {
		for i, field := range header {
			row[i] = cellValue(record[field])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// fieldUnion collects every field name present in the batch, sorted.
func fieldUnion(records []models.DetectionRecord) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, record := range records {
		for field := range record {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				fields = append(fields, field)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// cellValue renders one field value for the CSV. Floats keep their shortest
// exact representation instead of scientific notation.
func cellValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
