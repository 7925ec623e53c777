package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/fredo838/sparp/pool"
	"github.com/fredo838/sparp/transport"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

type resultLine struct {
	Category string `json:"category"`
	Value    any    `json:"value"`
}

func writeResults(w io.Writer, res pool.Result[transport.Request, transport.ParsedResponse]) error {
	enc := json.NewEncoder(w)
	write := func(category string, v any) error {
		return enc.Encode(resultLine{Category: category, Value: v})
	}

	for _, v := range res.Success {
		if err := write("success", v); err != nil {
			return err
		}
	}
	for _, v := range res.Failed {
		if err := write("failed", v); err != nil {
			return err
		}
	}
	for _, v := range res.SoftExhausted {
		if err := write("soft_exhausted", v); err != nil {
			return err
		}
	}
	for _, v := range res.TimeoutExhausted {
		if err := write("timeout_exhausted", v); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, stats pool.Stats, elapsed time.Duration, runErr error) {
	fmt.Fprintln(w)
	bold.Fprintf(w, "sparp: %d requests in %s\n", stats.Seen, elapsed.Round(time.Millisecond))

	table := tablewriter.NewWriter(w)
	table.Header("Category", "Count")
	rows := [][2]string{
		{"success", strconv.FormatInt(stats.Success, 10)},
		{"hard failed", strconv.FormatInt(stats.Failed, 10)},
		{"soft exhausted", strconv.FormatInt(stats.SoftExhausted, 10)},
		{"timeout exhausted", strconv.FormatInt(stats.TimeoutExhausted, 10)},
		{"soft retries", strconv.FormatInt(stats.SoftRetries, 10)},
		{"timeout retries", strconv.FormatInt(stats.TimeoutRetries, 10)},
	}
	for _, r := range rows {
		_ = table.Append(r[0], r[1])
	}
	_ = table.Render()

	var runError *pool.RunError
	switch {
	case errors.As(runErr, &runError):
		red.Fprintf(w, "run failed with %d unexpected error(s):\n", len(runError.Failures))
		for _, f := range runError.Failures {
			red.Fprintf(w, "  - %v\n", f)
		}
	case runErr != nil:
		yellow.Fprintf(w, "run interrupted: %v\n", runErr)
	case stats.Done() < stats.Seen:
		yellow.Fprintln(w, "run stopped early by a stop condition")
	default:
		green.Fprintln(w, "done")
	}
}
