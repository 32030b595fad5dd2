package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/salesledger/internal/app"
	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/observability"
	"github.com/Additional-Code/salesledger/internal/pipeline"
	"github.com/Additional-Code/salesledger/internal/runlog"
)

type runOptions struct {
	from      string
	to        string
	output    string
	resume    string
	workers   int
	poolSize  int
	chunkDays int
	blockSize int
	xlsx      bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export the sales of a date interval to a ledger file",
		Long: `Export the sales orders of a date interval to a semicolon-delimited ledger file.

Without --from and --to the previous day is exported. Dates use YYYY-MM-DD
and both bounds are inclusive. --resume continues a journaled run after its
last written chunk.`,
		Example: `  salesledger run
  salesledger run --from 2024-01-01 --to 2024-03-31 --chunk-days 15
  salesledger run --resume 5d2c9a7e-0f7b-4d7e-9a34-3a9f3c1f2b10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}

			var (
				svc *pipeline.Service
				obs *observability.Manager
			)
			fxOpts := fx.Options(
				app.Core,
				fx.Decorate(opts.apply(cmd)),
				fx.Populate(&svc, &obs),
			)
			return runWithApp(cmd.Context(), fxOpts, func(ctx context.Context) error {
				run, runErr := svc.Run(ctx, req)
				if run != nil {
					printSummary(cmd.OutOrStdout(), run)
					pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
					defer cancel()
					if err := obs.Push(pushCtx, "salesledger_run", map[string]string{"run_id": run.ID}); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
					}
				}
				return runErr
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.from, "from", "", "First sales day to export (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "Last sales day to export (YYYY-MM-DD)")
	f.StringVarP(&opts.output, "output", "o", "", "Ledger file path (default: derived from the dates inside PIPELINE_OUTPUT_DIR)")
	f.StringVar(&opts.resume, "resume", "", "Resume the journaled run with this id")
	f.IntVar(&opts.workers, "workers", 0, "Row-building workers per chunk (overrides PIPELINE_WORKERS)")
	f.IntVar(&opts.poolSize, "pool-size", 0, "ERP connection pool size (overrides DB_POOL_SIZE)")
	f.IntVar(&opts.chunkDays, "chunk-days", 0, "Days per chunk (overrides PIPELINE_CHUNK_DAYS)")
	f.IntVar(&opts.blockSize, "block-size", 0, fmt.Sprintf("Ids per IN query, at most %d (overrides PIPELINE_BLOCK_SIZE)", config.MaxBlockSize))
	f.BoolVar(&opts.xlsx, "xlsx", false, "Also write an .xlsx copy of the ledger")
	cmd.MarkFlagsMutuallyExclusive("resume", "from")
	cmd.MarkFlagsMutuallyExclusive("resume", "to")
	cmd.MarkFlagsRequiredTogether("from", "to")

	return cmd
}

func (o runOptions) request() (pipeline.Request, error) {
	req := pipeline.Request{OutputPath: o.output, ResumeRunID: o.resume}
	var err error
	if o.from != "" {
		if req.Start, err = time.Parse(time.DateOnly, o.from); err != nil {
			return req, fmt.Errorf("invalid --from %q: expected YYYY-MM-DD", o.from)
		}
	}
	if o.to != "" {
		if req.End, err = time.Parse(time.DateOnly, o.to); err != nil {
			return req, fmt.Errorf("invalid --to %q: expected YYYY-MM-DD", o.to)
		}
	}
	return req, nil
}

// apply returns a config decorator applying the flags the user set.
func (o runOptions) apply(cmd *cobra.Command) func(config.Config) (config.Config, error) {
	return func(cfg config.Config) (config.Config, error) {
		flags := cmd.Flags()
		if flags.Changed("workers") {
			cfg.Pipeline.Workers = o.workers
		}
		if flags.Changed("chunk-days") {
			cfg.Pipeline.ChunkDays = o.chunkDays
		}
		if flags.Changed("block-size") {
			cfg.Pipeline.BlockSize = o.blockSize
		}
		if flags.Changed("xlsx") {
			cfg.Pipeline.XLSXMirror = o.xlsx
		}
		if flags.Changed("pool-size") {
			if o.poolSize <= 0 {
				return cfg, fmt.Errorf("invalid --pool-size: %d", o.poolSize)
			}
			cfg.Database.PoolSize = o.poolSize
		}
		return cfg, cfg.Pipeline.Validate()
	}
}

func printSummary(w io.Writer, run *runlog.Run) {
	fmt.Fprintf(w, "run %s %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "  range:   %s .. %s\n", run.RangeStart.Format(time.DateOnly), run.RangeEnd.Format(time.DateOnly))
	fmt.Fprintf(w, "  file:    %s\n", run.OutputPath)
	fmt.Fprintf(w, "  chunks:  %d\n", run.Chunks)
	fmt.Fprintf(w, "  orders:  %d\n", run.Orders)
	fmt.Fprintf(w, "  rows:    %d\n", run.Rows)
	if run.FailedBlocks > 0 || run.FailedOrders > 0 || run.SkippedItems > 0 {
		fmt.Fprintf(w, "  skipped: %d blocks, %d orders, %d items\n", run.FailedBlocks, run.FailedOrders, run.SkippedItems)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  error:   %s\n", run.Error)
	}
}
