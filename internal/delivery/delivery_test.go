package delivery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/salesledger/internal/config"
	"github.com/Additional-Code/salesledger/pkg/errorbank"
)

func TestNewDisabledKeepsFileLocal(t *testing.T) {
	var cfg config.Config
	d := New(cfg, zap.NewNop())

	got, err := d.Deliver(context.Background(), "/data/out/faturamento_diario_050324.csv")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/data/out/faturamento_diario_050324.csv" {
		t.Fatalf("Deliver = %q", got)
	}
}

func TestSFTPUploaderRequiresKnownHosts(t *testing.T) {
	var cfg config.Config
	cfg.Delivery = config.Delivery{
		SFTPEnabled:    true,
		SFTPAddr:       "127.0.0.1:1",
		SFTPUser:       "ledger",
		SFTPRemoteDir:  "/inbound",
		KnownHostsFile: filepath.Join(t.TempDir(), "missing_known_hosts"),
		Timeout:        time.Second,
	}
	d := New(cfg, zap.NewNop())
	if _, ok := d.(*SFTPUploader); !ok {
		t.Fatalf("New returned %T, want *SFTPUploader", d)
	}

	remote, err := d.Deliver(context.Background(), "/data/out/ledger.csv")
	if remote != "" {
		t.Fatalf("remote = %q on failure", remote)
	}
	if !errorbank.Is(err, errorbank.KindUnavailable) {
		t.Fatalf("Deliver error = %v, want unavailable", err)
	}
	if got := errorbank.From(err).Details()["remote_path"]; got != "/inbound/ledger.csv" {
		t.Fatalf("remote_path detail = %v", got)
	}
}
