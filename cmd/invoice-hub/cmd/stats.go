package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-hub/internal/report"
)

var statsTenant string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics for stored invoices",
	Long: `Print the analytics snapshot: record counts by status, records created
this month, and the total invoice amount converted to USD.

Examples:
  invoice-hub stats
  invoice-hub stats --tenant alice -f table`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsTenant, "tenant", "", "Scope to one owner (default: all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	log := newLogger()
	st, err := openStore(log)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	analytics, err := report.NewAggregator(st).Summarize(ctx, statsTenant)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(analytics)
	case "table":
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Total invoices:\t%d\n", analytics.Total)
		fmt.Fprintf(tw, "Pending:\t%d\n", analytics.Pending)
		fmt.Fprintf(tw, "Approved:\t%d\n", analytics.Approved)
		fmt.Fprintf(tw, "This month:\t%d\n", analytics.Monthly)
		fmt.Fprintf(tw, "Total amount (USD):\t%s\n", analytics.TotalAmountUSD)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}
