package commands

import (
	"fmt"
	"strings"
	"time"
)

const timeRound = 10 * time.Millisecond

// printTable renders rows with aligned columns for terminal output.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&b, "%-*s  ", widths[i], h)
	}
	fmt.Println(strings.TrimRight(b.String(), " "))

	b.Reset()
	for i := range headers {
		b.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	fmt.Println(strings.TrimRight(b.String(), " "))

	for _, row := range rows {
		b.Reset()
		for i, cell := range row {
			fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
		}
		fmt.Println(strings.TrimRight(b.String(), " "))
	}
}
