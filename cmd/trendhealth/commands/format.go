package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/trendhealth/internal/barcache"
	"github.com/wonny/trendhealth/internal/history"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields map[string]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		PrintKeyValue(k, fields[k], 10)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// printRefreshSummary prints a cache refresh summary
func printRefreshSummary(s *barcache.RunSummary) {
	fmt.Println()
	PrintKeyValue("Run ID", s.RunID, 10)
	PrintKeyValue("Symbols", fmt.Sprintf("%d (%d with data)", s.Symbols, len(s.Bars)), 10)

	actions := make([]string, 0, len(s.Counts))
	for a, n := range s.Counts {
		actions = append(actions, fmt.Sprintf("%s=%d", a, n))
	}
	sort.Strings(actions)
	PrintKeyValue("Actions", strings.Join(actions, " "), 10)
	if len(s.Deferred) > 0 {
		PrintKeyValue("Deferred", strings.Join(s.Deferred, ", "), 10)
	}
	PrintKeyValue("Duration", s.Duration.Round(time.Millisecond).String(), 10)

	if len(s.Failures) > 0 {
		fmt.Println()
		widths := []int{12, 18, 11, 6}
		PrintTableHeader([]string{"SYMBOL", "STAGE", "KIND", "CACHE"}, widths)
		for _, f := range s.Failures {
			cache := "no"
			if f.UsedCache {
				cache = "yes"
			}
			PrintTableRow([]string{f.Symbol, string(f.Stage), f.Kind, cache}, widths)
		}
		fmt.Println()
		PrintWarning(fmt.Sprintf("%d symbol(s) failed", len(s.Failures)))
		return
	}
	PrintSuccess("Cache refresh completed")
}

// printHistorySummary prints a history run summary
func printHistorySummary(s *history.RunSummary) {
	if s == nil {
		return
	}
	fmt.Println()
	PrintKeyValue("Run ID", s.RunID, 10)
	PrintKeyValue("Duration", s.Duration.Round(time.Millisecond).String(), 10)
	fmt.Println()

	widths := []int{28, 9, 8, 7}
	PrintTableHeader([]string{"KEY", "COMPUTED", "UNKNOWN", "POINTS"}, widths)
	failed := 0
	for _, v := range s.Variants {
		points := fmt.Sprint(v.Points)
		if v.Error != "" {
			points = "ERROR"
			failed++
		}
		PrintTableRow([]string{v.Key, fmt.Sprint(v.Computed), fmt.Sprint(v.Unknown), points}, widths)
	}
	fmt.Println()
	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d artifact(s) not updated", failed))
		return
	}
	PrintSuccess("Health history updated")
}
