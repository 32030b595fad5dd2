package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/internal/runlog"
)

func validConfig() config.Config {
	return config.Config{
		Database: config.Database{PoolSize: 5},
		Pipeline: config.Pipeline{
			LegalEntityTaxID:   "14.255.350/0001-03",
			Workers:            5,
			ChunkDays:          30,
			BlockSize:          config.MaxBlockSize,
			HistoryTablePrefix: "HISTORICOPRODUTO",
			HistoryPartitions:  10,
		},
	}
}

func TestRunOptionsRequest(t *testing.T) {
	req, err := runOptions{from: "2024-01-01", to: "2024-01-31", output: "x.csv"}.request()
	if err != nil {
		t.Fatal(err)
	}
	if !req.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || req.OutputPath != "x.csv" {
		t.Fatalf("request = %+v", req)
	}
	if _, err := (runOptions{from: "01/01/2024", to: "2024-01-31"}).request(); err == nil {
		t.Fatal("malformed --from accepted")
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	cmd := newRunCmd()
	if err := cmd.ParseFlags([]string{"--workers", "8", "--chunk-days", "7", "--pool-size", "3", "--xlsx"}); err != nil {
		t.Fatal(err)
	}
	var opts runOptions
	opts.workers, _ = cmd.Flags().GetInt("workers")
	opts.chunkDays, _ = cmd.Flags().GetInt("chunk-days")
	opts.poolSize, _ = cmd.Flags().GetInt("pool-size")
	opts.xlsx, _ = cmd.Flags().GetBool("xlsx")

	cfg, err := opts.apply(cmd)(validConfig())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Pipeline.Workers != 8 || cfg.Pipeline.ChunkDays != 7 || cfg.Database.PoolSize != 3 || !cfg.Pipeline.XLSXMirror {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Pipeline.BlockSize != config.MaxBlockSize {
		t.Fatalf("unset flag changed block size: %d", cfg.Pipeline.BlockSize)
	}
}

func TestRunFlagsRejectOversizedBlocks(t *testing.T) {
	cmd := newRunCmd()
	if err := cmd.ParseFlags([]string{"--block-size", "5000"}); err != nil {
		t.Fatal(err)
	}
	if _, err := (runOptions{blockSize: 5000}).apply(cmd)(validConfig()); err == nil {
		t.Fatal("block size above the engine limit accepted")
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &runlog.Run{
		ID:           "r1",
		Status:       runlog.StatusCompleted,
		RangeStart:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Rows:         3,
		FailedBlocks: 1,
	})
	out := buf.String()
	for _, want := range []string{"run r1 completed", "2024-01-01 .. 2024-01-02", "rows:    3", "1 blocks"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
