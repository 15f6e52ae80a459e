package google

import (
	"fmt"
	"strings"

	"github.com/GMosna/ContabilApp/internal/core"
	ports "github.com/GMosna/ContabilApp/internal/sheets"
)

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseRows converts sheet values into rows of the given month. Header and
// malformed rows are skipped.
func parseRows(values [][]any, year, month int) []ports.Row {
	var out []ports.Row
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 4 {
			continue
		}
		date, err := core.ParseDate(cols[0])
		if err != nil {
			continue
		}
		if date.Year() != year || int(date.Month()) != month {
			continue
		}
		amount, err := core.ParseAmount(cols[2])
		if err != nil {
			continue
		}
		kind, err := core.ParseKind(cols[3])
		if err != nil {
			continue
		}
		out = append(out, ports.Row{
			TransactionID: core.TransactionID(safeGet(cols, 6)),
			Date:          date,
			Description:   cols[1],
			Amount:        amount,
			Kind:          kind,
			Category:      safeGet(cols, 4),
			Account:       safeGet(cols, 5),
		})
	}
	return out
}
