package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentloc/locateval/internal/formatter"
	"github.com/agentloc/locateval/internal/types"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-dir>/summary.json",
	Short: "Re-render a prior run's summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}

	var summary types.AggregateSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return fmt.Errorf("parse summary: %w", err)
	}

	return renderSummary(os.Stdout, &summary, GetOutput())
}

// renderSummary writes summary to w using the formatter named by format
// (table, json, or markdown); any other value renders the table.
func renderSummary(w io.Writer, summary *types.AggregateSummary, format string) error {
	switch format {
	case "json":
		jsonl := formatter.NewJSONLFormatter()
		jsonl.Pretty = true
		return jsonl.FormatSummary(w, summary)
	case "markdown", "md":
		return formatter.NewMarkdownFormatter().Format(w, summary)
	default:
		return renderVariantTable(w, summary)
	}
}

// renderVariantTable writes summary as a fixed-width terminal table: one
// row per variant on the quality/cost axes §4.9 names, plus the paired
// delta line when two variants ran. It drives a tabwriter directly
// instead of routing through a generic reusable table type, since these
// columns (and their percent/currency formatting) are specific to an
// AggregateSummary and have no other caller.
func renderVariantTable(w io.Writer, summary *types.AggregateSummary) error {
	fmt.Fprintf(w, "run: %s  split: %s  instances: %d\n\n", summary.RunID, summary.Split, summary.InstanceCount)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIANT\tN\tHIT@1\tHIT@3\tHIT@5\tHIT@10\tMRR\tCOVERAGE\tTOKENS\tCOST")
	for _, v := range summary.Variants {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%.2f\t%s\t%d\t%.2f\n",
			v.Variant,
			v.InstanceCount,
			pctCell(v.HitRateAt1),
			pctCell(v.HitRateAt3),
			pctCell(v.HitRateAt5),
			pctCell(v.HitRateAt10),
			v.MeanReciprocalRank,
			pctCell(v.MeanCoverage),
			v.TotalTokens,
			v.TotalCostUSD,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	if summary.Delta != nil && len(summary.Variants) == 2 {
		fmt.Fprintf(w, "\ndelta (%s - %s): hit@1 %.3f  mrr %.3f  cost %.2f\n",
			summary.Variants[1].Variant, summary.Variants[0].Variant,
			summary.Delta.HitRateAt1Delta, summary.Delta.MRRDelta, summary.Delta.TotalCostUSDDelta)
	}
	return nil
}

func pctCell(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
