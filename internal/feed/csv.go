package feed

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// Delimiter is a CSV field separator
type Delimiter rune

const (
	DelimiterComma     Delimiter = ','
	DelimiterSemicolon Delimiter = ';'
	DelimiterTab       Delimiter = '\t'
)

// DetectDelimiter picks the delimiter whose per-line counts are both
// high and consistent over the first few non-empty lines. Supplier
// exports are split between comma, semicolon and tab about evenly.
func DetectDelimiter(content string) Delimiter {
	sampleLines := make([]string, 0, 5)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			sampleLines = append(sampleLines, trimmed)
			if len(sampleLines) >= 5 {
				break
			}
		}
	}
	if len(sampleLines) == 0 {
		return DelimiterComma
	}

	best := DelimiterComma
	maxConsistency := 0.0

	for _, delim := range []Delimiter{DelimiterComma, DelimiterSemicolon, DelimiterTab} {
		counts := make([]int, 0, len(sampleLines))
		sum := 0
		for _, line := range sampleLines {
			count := strings.Count(line, string(delim))
			counts = append(counts, count)
			sum += count
		}

		avg := float64(sum) / float64(len(counts))
		if avg == 0 {
			continue
		}

		variance := 0.0
		for _, c := range counts {
			diff := float64(c) - avg
			variance += diff * diff
		}
		variance /= float64(len(counts))

		consistency := avg / (1.0 + variance)
		if consistency > maxConsistency {
			maxConsistency = consistency
			best = delim
		}
	}

	return best
}

// ParseCSV decodes raw file bytes into a grid. Charset and delimiter
// are auto-detected; ragged rows are tolerated and padded downstream
// by the cell reader.
func ParseCSV(data []byte) (*Grid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	content, err := DecodeToUTF8(data, DetectEncoding(data))
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.Comma = rune(DetectDelimiter(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no rows")
	}

	return &Grid{
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}
