package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/trendhealth/internal/barcache"
)

// cacheStatusCmd inspects cached series without fetching
var cacheStatusCmd = &cobra.Command{
	Use:   "cache-status <symbol>...",
	Short: "심볼 캐시 상태 조회",
	Args:  cobra.MinimumNArgs(1),
	Example: `  go run ./cmd/trendhealth cache-status AAPL
  go run ./cmd/trendhealth cache-status AAPL BRK-B SPY`,
	RunE: runCacheStatus,
}

func init() {
	rootCmd.AddCommand(cacheStatusCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	store, meta := a.barStores()

	widths := []int{12, 6, 11, 11, 6, 10}
	fmt.Println()
	PrintTableHeader([]string{"SYMBOL", "BARS", "FIRST", "LAST", "SPAN", "INCEPTION"}, widths)
	for _, symbol := range args {
		st, err := barcache.Inspect(store, meta, symbol)
		if err != nil {
			return err
		}
		if !st.Exists {
			PrintTableRow([]string{symbol, "-", "-", "-", "-", "-"}, widths)
			continue
		}

		inception := "no"
		if st.Metadata != nil && st.Metadata.InceptionLimited {
			inception = "limited"
		}
		PrintTableRow([]string{
			symbol,
			fmt.Sprint(st.Bars),
			st.FirstDate,
			st.LastDate,
			fmt.Sprintf("%dd", st.SpanDays),
			inception,
		}, widths)
	}
	fmt.Println()
	return nil
}
