package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/merchantiq/catalog-service/internal/httpclient"
	"github.com/merchantiq/catalog-service/internal/mapping"
)

// FieldPaths maps canonical fields to dot-notation paths inside each
// API product object, e.g. FieldEAN -> "identifiers.ean13".
type FieldPaths map[mapping.Field]string

// FetchAPIFeed pulls a JSON array of product objects and flattens it
// into a grid using the supplied field paths. The returned mapping
// binds each configured field to its grid column, so the grid plugs
// straight into the import pipeline.
func FetchAPIFeed(ctx context.Context, client *httpclient.Client, url string, paths FieldPaths) (*Grid, mapping.Mapping, error) {
	data, err := client.GetBytes(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch api feed: %w", err)
	}
	return ParseAPIFeed(data, paths)
}

// ParseAPIFeed flattens a JSON array payload into a grid
func ParseAPIFeed(data []byte, paths FieldPaths) (*Grid, mapping.Mapping, error) {
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no field paths configured")
	}

	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, nil, fmt.Errorf("decode api feed: %w", err)
	}

	// Stable column order
	fields := make([]mapping.Field, 0, len(paths))
	for _, f := range mapping.AllFields() {
		if _, ok := paths[f]; ok {
			fields = append(fields, f)
		}
	}

	m := make(mapping.Mapping, len(fields))
	headers := make([]string, len(fields))
	for i, f := range fields {
		m.Set(f, i)
		headers[i] = string(f)
	}

	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = stringifyValue(extractPath(obj, paths[f]))
		}
		rows = append(rows, row)
	}

	return &Grid{Headers: headers, Rows: rows}, m, nil
}

// extractPath walks a dot-notation path through nested JSON objects
func extractPath(obj map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var current any = obj

	for _, part := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = node[part]
		if !ok {
			return nil
		}
	}

	return current
}

// stringifyValue renders a loosely-typed JSON value as a raw cell
func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
