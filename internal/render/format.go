// Package render turns a finished report into human-readable output:
// a styled terminal report and a markdown file per week.
package render

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// emDash marks a value the week simply does not have (no sales, no
// spend), as opposed to a real zero.
const emDash = "—"

var intPrinter = message.NewPrinter(language.English)

func fmtDollar(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func fmtDollarPtr(v *float64) string {
	if v == nil {
		return emDash
	}
	return fmtDollar(*v)
}

func fmtPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func fmtPctPtr(v *float64) string {
	if v == nil {
		return emDash
	}
	return fmtPct(*v)
}

func fmtInt(v int) string {
	return intPrinter.Sprintf("%d", v)
}

func fmtROAS(v *float64) string {
	if v == nil {
		return emDash
	}
	return fmt.Sprintf("%.2fx", *v)
}

// deltaSuffix renders a week-over-week change as " (+$3.20)" style
// suffixes. The format callback handles the unit; the sign comes from
// the value itself, with an explicit plus for increases.
func deltaSuffix(v float64, format func(float64) string) string {
	if v > 0 {
		return fmt.Sprintf(" (+%s)", format(v))
	}
	if v < 0 {
		return fmt.Sprintf(" (-%s)", format(-v))
	}
	return fmt.Sprintf(" (%s)", format(0))
}

func deltaIntSuffix(v int) string {
	if v > 0 {
		return fmt.Sprintf(" (+%s)", fmtInt(v))
	}
	if v < 0 {
		return fmt.Sprintf(" (-%s)", fmtInt(-v))
	}
	return fmt.Sprintf(" (%s)", fmtInt(0))
}
