package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rsextract/internal/config"
	"rsextract/internal/dataset"
	"rsextract/internal/ledger"
	"rsextract/internal/logging"
	"rsextract/internal/pool"
	"rsextract/internal/preflight"
	"rsextract/internal/take"
)

// envRunID carries the run id into worker processes.
const envRunID = "RSEXTRACT_RUN_ID"

// newTakeRunner builds the runner a run hands its jobs to.
var newTakeRunner = func(c *commandContext, cfg *config.Config, runID string) pool.Runner {
	return pool.ExecRunner{
		ConfigPath: c.workerConfigPath(),
		LogLevel:   c.levelOverride(),
		Env:        []string{envRunID + "=" + runID},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var action string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every recorded take in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers <= 0 {
				workers = cfg.Extraction.Workers
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !ok {
				return fmt.Errorf("another rsextract run is active (lock %s)", cfg.LockPath())
			}
			defer func() { _ = lock.Unlock() }()

			runID := uuid.NewString()
			runCtx := logging.WithRunID(cmd.Context(), runID)
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			logger = logging.WithContext(runCtx, logging.NewComponentLogger(logger, "run"))

			if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
				details := make([]string, 0, len(failed))
				for _, r := range failed {
					details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
			}

			actions, err := dataset.Discover(cfg.Paths.DatasetDir, cfg.Cameras.Serial1)
			if err != nil {
				return err
			}
			jobs := dataset.Jobs(actions, strings.TrimSpace(action))
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No takes found to process.")
				return nil
			}

			store, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.BeginRun(runCtx, runID, workers, len(jobs)); err != nil {
				return err
			}

			fmt.Fprintf(out, "Found %d takes to process. Starting parallel processing with %d workers...\n", len(jobs), workers)
			logger.Info("run started",
				logging.String(logging.FieldEventType, "run_start"),
				logging.Int("takes", len(jobs)),
				logging.Int("workers", workers),
				logging.String("ledger", store.Path()),
			)

			// Outcomes are recorded even after an interrupt.
			ledgerCtx := context.WithoutCancel(runCtx)
			started := time.Now()
			statuses := pool.Run(runCtx, jobs, workers, newTakeRunner(ctx, cfg, runID),
				pool.WithLogger(logger),
				pool.WithProgress(cmd.ErrOrStderr()),
				pool.WithResultHook(func(status take.Status) {
					if err := store.Record(ledgerCtx, runID, status); err != nil {
						logging.WarnWithContext(logger, "ledger write failed", "ledger_write_failed",
							logging.String(logging.FieldAction, status.Action),
							logging.Int(logging.FieldTake, status.Take),
							logging.Error(err),
							logging.String(logging.FieldImpact, "status will not list this outcome"),
						)
					}
				}),
			)
			if err := store.FinishRun(ledgerCtx, runID); err != nil {
				logging.WarnWithContext(logger, "ledger finish failed", "ledger_write_failed", logging.Error(err))
			}

			summary := pool.Summarize(statuses)
			logger.Info("run finished",
				logging.String(logging.FieldEventType, "run_complete"),
				logging.Int("completed", summary.Completed),
				logging.Int("skipped", summary.Skipped),
				logging.Int("failed", summary.Failed),
				logging.Duration("elapsed", time.Since(started)),
			)

			fmt.Fprintf(out, "\n%s\nDataset processing complete.\n%s\n", strings.Repeat("=", 60), strings.Repeat("=", 60))
			fmt.Fprintln(out, renderStatuses(statuses))
			fmt.Fprintf(out, "Completed %d, skipped %d, failed %d (%d frames) in %s\n",
				summary.Completed, summary.Skipped, summary.Failed, summary.Frames, time.Since(started).Round(time.Second))
			fmt.Fprintf(out, "Run %s\n", runID)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker processes (default extraction.workers)")
	cmd.Flags().StringVarP(&action, "action", "a", "", "Only process takes of this action")
	return cmd
}

func renderStatuses(statuses []take.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		detail := ""
		if st.Err != nil {
			detail = st.Err.Error()
		}
		rows = append(rows, []string{
			st.Action,
			fmt.Sprintf("%02d", st.Take),
			string(st.Kind),
			strconv.Itoa(st.Frames),
			st.Duration.Round(10 * time.Millisecond).String(),
			detail,
		})
	}
	return renderTable(
		[]string{"Action", "Take", "Status", "Frames", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
}
