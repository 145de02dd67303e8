package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rsextract/internal/ledger"
)

type statusOutput struct {
	Runs  []runJSON  `json:"runs"`
	Takes []takeJSON `json:"takes"`
}

type runJSON struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Workers    int        `json:"workers"`
	Takes      int        `json:"takes"`
	Completed  int        `json:"completed"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
}

type takeJSON struct {
	Action     string    `json:"action"`
	Take       int       `json:"take"`
	Status     string    `json:"status"`
	Frames     int       `json:"frames"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	RunID      string    `json:"run_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var runLimit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest recorded outcome of every take",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.LedgerPath()); errors.Is(err, os.ErrNotExist) {
				if jsonOutput {
					return writeJSON(cmd, statusOutput{Runs: []runJSON{}, Takes: []takeJSON{}})
				}
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), runLimit)
			if err != nil {
				return err
			}
			records, err := store.Latest(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, toStatusOutput(runs, records))
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs))
			if len(records) > 0 {
				fmt.Fprintln(out, renderRecords(records))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runLimit, "runs", 5, "Number of recent runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderRuns(runs []ledger.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			finished,
			strconv.Itoa(r.Workers),
			strconv.Itoa(r.Takes),
			strconv.Itoa(r.Completed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Elapsed", "Workers", "Takes", "Completed", "Skipped", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderRecords(records []ledger.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Action,
			fmt.Sprintf("%02d", r.Take),
			string(r.Status),
			strconv.Itoa(r.Frames),
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			r.Detail,
		})
	}
	return renderTable(
		[]string{"Action", "Take", "Status", "Frames", "Recorded", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func toStatusOutput(runs []ledger.Run, records []ledger.Record) statusOutput {
	out := statusOutput{Runs: make([]runJSON, 0, len(runs)), Takes: make([]takeJSON, 0, len(records))}
	for _, r := range runs {
		out.Runs = append(out.Runs, runJSON{
			ID: r.ID, StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
			Workers: r.Workers, Takes: r.Takes,
			Completed: r.Completed, Skipped: r.Skipped, Failed: r.Failed,
		})
	}
	for _, r := range records {
		out.Takes = append(out.Takes, takeJSON{
			Action: r.Action, Take: r.Take, Status: string(r.Status), Frames: r.Frames,
			Detail: r.Detail, DurationMS: r.Duration.Milliseconds(),
			RunID: r.RunID, RecordedAt: r.RecordedAt,
		})
	}
	return out
}
