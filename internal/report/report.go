// Package report renders reading series for the command-line tool.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/i474232898/campus-energy-week/internal/energy"
)

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, csv or json)", s)
	}
}

var columns = []string{"datetime", "location", "power"}

// Write renders readings to w. v is what JSON output encodes, typically the
// enclosing WeekSeries or DaySeries.
func Write(w io.Writer, f Format, v any, readings []energy.Reading) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatCSV:
		return writeCSV(w, readings)
	case FormatTable, "":
		return writeTable(w, readings)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

func writeCSV(w io.Writer, readings []energy.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, r := range readings {
		if err := cw.Write([]string{r.Datetime, r.Location, formatPower(r.Power)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, readings []energy.Reading) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t\n", strings.ToUpper(columns[0]), strings.ToUpper(columns[1]), strings.ToUpper(columns[2]))
	for _, r := range readings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", r.Datetime, r.Location, formatPower(r.Power))
	}
	fmt.Fprintf(tw, "%d readings\t\t\t\n", len(readings))
	return tw.Flush()
}

func formatPower(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
