package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/stockpulse/internal/app"
	"github.com/seenimoa/stockpulse/pkg/models"
	"github.com/seenimoa/stockpulse/pkg/utils"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend SYMBOL...",
	Short: "Score and rank one or more stocks",
	Long: `Score and rank stocks for a short-term (about 30 days) or long-term
(about 5 years) horizon.

Examples:
  stockpulse recommend AAPL MSFT NVDA
  stockpulse recommend aapl,msft --horizon long-term --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		horizon, _ := cmd.Flags().GetString("horizon")
		asJSON, _ := cmd.Flags().GetBool("json")

		var symbols []string
		for _, a := range args {
			symbols = append(symbols, utils.SplitSymbols(a)...)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		resp := a.Recommend(ctx, symbols, horizon)
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
		} else {
			printTable(cmd.OutOrStdout(), resp)
		}

		if resp.Status == models.StatusError {
			return fmt.Errorf("%s", resp.Message)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().String("horizon", string(models.HorizonShortTerm), "investment horizon: short-term or long-term")
	recommendCmd.Flags().Bool("json", false, "print the full response as JSON")
}

func printTable(out io.Writer, resp models.RecommendationResponse) {
	if resp.Status == models.StatusError {
		return
	}
	fmt.Fprintf(out, "Horizon: %s   Generated: %s\n\n", resp.Metadata.Horizon, resp.Metadata.Timestamp)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tSCORE\tRECENT\tHISTORICAL\tVOL\tSENTIMENT\tITEMS")
	for i, r := range resp.Recommendations {
		items := 0
		if r.Details.Sources != nil {
			items = r.Details.Sources.Total()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%d\n",
			i+1,
			r.Company,
			utils.FormatScore(r.Score),
			utils.FormatPct(r.Details.StockData.RecentGrowth),
			utils.FormatPct(r.Details.StockData.HistoricalGrowth),
			r.Details.StockData.Volatility,
			utils.FormatScore(r.Details.Components.SentimentScore),
			items,
		)
	}
	_ = tw.Flush()

	fmt.Fprintln(out)
	for _, r := range resp.Recommendations {
		if r.Details.Rationale != "" {
			fmt.Fprintf(out, "%s: %s\n", r.Company, r.Details.Rationale)
		}
	}
}
