package google

import (
	"fmt"
	"strings"
)

// findRow returns the 1-based row whose first cell equals id, or 0.
// values is a single-column read, so the header counts as row 1.
func findRow(values [][]any, id string) int {
	id = strings.TrimSpace(id)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 {
			continue
		}
		if cols[0] == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
