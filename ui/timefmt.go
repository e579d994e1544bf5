package ui

import "fmt"

// FormatTime renders a millisecond duration as minutes:seconds, e.g. 75000 as
// "1:15". Negative input renders as "0:00".
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
