package model

import (
	"fmt"
	"strings"
)

// buildPlaceholders renders "col1 = $1, col2 = $2, ..." for an UPDATE's SET
// clause, starting numbering at startAt. The Update methods pass 1 and bind
// the row key last, to the placeholder after the final column.
func buildPlaceholders(fields []string, startAt int) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s = $%d", f, startAt+i)
	}
	return strings.Join(parts, ", ")
}
