package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/docbench/docbench/internal/aggregate"
)

// csvHeader matches the column names filter expressions see.
var csvHeader = []string{
	"pipeline", "doc_type", "metric", "count", "mean", "median", "min", "max",
	"documents", "total_cost_usd", "total_latency_seconds",
}

// WriteCSV renders rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []aggregate.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Pipeline,
			row.DocType,
			row.Metric,
			strconv.Itoa(row.Count),
			fmtFloat(row.Mean),
			fmtFloat(row.Median),
			fmtFloat(row.Min),
			fmtFloat(row.Max),
			strconv.Itoa(row.Documents),
			fmtFloat(row.TotalCostUSD),
			fmtFloat(row.TotalLatencySeconds),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable renders rows as an aligned terminal table.
func WriteTable(w io.Writer, rows []aggregate.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PIPELINE\tDOC TYPE\tMETRIC\tCOUNT\tMEAN\tMEDIAN\tMIN\tMAX\tDOCS\tCOST ($)\tLATENCY (s)")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t%.4f\t%.2f\n",
			row.Pipeline, row.DocType, row.Metric, row.Count,
			row.Mean, row.Median, row.Min, row.Max,
			row.Documents, row.TotalCostUSD, row.TotalLatencySeconds)
	}
	return tw.Flush()
}

// fmtFloat renders a float compactly without padding zeroes, so CSV values
// round-trip through ParseFloat.
func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
