// Package feed turns supplier files and API payloads into raw cell
// grids for the import pipeline.
package feed

// Grid is a parsed supplier feed: one header row plus data rows. Cells
// are raw strings; normalization happens downstream.
type Grid struct {
	Headers []string
	Rows    [][]string
}

// RowCount returns the number of data rows
func (g *Grid) RowCount() int {
	return len(g.Rows)
}

// Chunk slices the grid's rows into fixed-size chunks. The final
// chunk may be short.
func (g *Grid) Chunk(size int) [][][]string {
	if size <= 0 || len(g.Rows) == 0 {
		if len(g.Rows) == 0 {
			return nil
		}
		return [][][]string{g.Rows}
	}

	chunks := make([][][]string, 0, (len(g.Rows)+size-1)/size)
	for start := 0; start < len(g.Rows); start += size {
		end := start + size
		if end > len(g.Rows) {
			end = len(g.Rows)
		}
		chunks = append(chunks, g.Rows[start:end])
	}
	return chunks
}
