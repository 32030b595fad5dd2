package config

import (
	"reflect"
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "SYSDBA:masterkey@localhost:3050/erp.fdb")
	t.Setenv("PIPELINE_LEGAL_ENTITY_TAX_ID", "14.255.350/0001-03")
}

func TestNewDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Database.Driver != "firebird" {
		t.Errorf("driver = %q, want firebird", cfg.Database.Driver)
	}
	if cfg.Pipeline.BlockSize != MaxBlockSize {
		t.Errorf("block size = %d, want %d", cfg.Pipeline.BlockSize, MaxBlockSize)
	}
	if cfg.Pipeline.ChunkDays != 30 || cfg.Pipeline.Workers != 5 || cfg.Database.PoolSize != 5 {
		t.Errorf("unexpected pipeline defaults: %+v pool=%d", cfg.Pipeline, cfg.Database.PoolSize)
	}
	if cfg.Cache.Driver != "noop" {
		t.Errorf("cache driver = %q, want noop when disabled", cfg.Cache.Driver)
	}
	if cfg.Messaging.Driver != "noop" {
		t.Errorf("messaging driver = %q, want noop when disabled", cfg.Messaging.Driver)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "block size above ceiling", env: map[string]string{"PIPELINE_BLOCK_SIZE": "1500"}, wantErr: "PIPELINE_BLOCK_SIZE"},
		{name: "zero workers", env: map[string]string{"PIPELINE_WORKERS": "0"}, wantErr: "PIPELINE_WORKERS"},
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "oracle"}, wantErr: "unsupported database driver"},
		{name: "state without dsn", env: map[string]string{"STATE_ENABLED": "true"}, wantErr: "STATE_DSN"},
		{name: "sftp without host", env: map[string]string{"SFTP_ENABLED": "true"}, wantErr: "SFTP_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryTables(t *testing.T) {
	p := Pipeline{HistoryTablePrefix: "HISTORICOPRODUTO", HistoryPartitions: 3}
	want := []string{"HISTORICOPRODUTO1", "HISTORICOPRODUTO2", "HISTORICOPRODUTO3"}
	if got := p.HistoryTables(); !reflect.DeepEqual(got, want) {
		t.Fatalf("HistoryTables = %v, want %v", got, want)
	}
}

func TestFirebirdDSN(t *testing.T) {
	got := firebirdDSN("db.local", 3050, "/data/erp.fdb", "SYSDBA", "m@ster", "RDB$ADMIN", "Srp")
	want := "SYSDBA:m%40ster@db.local:3050/data/erp.fdb?auth_plugin_name=Srp&role=RDB%24ADMIN"
	if got != want {
		t.Fatalf("firebirdDSN = %q, want %q", got, want)
	}
	if got := firebirdDSN("10.0.0.5", 3051, "erp", "app", "pw", "", ""); got != "app:pw@10.0.0.5:3051/erp" {
		t.Fatalf("firebirdDSN without params = %q", got)
	}
}

func TestNewBuildsFirebirdDSNFromParts(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("PIPELINE_LEGAL_ENTITY_TAX_ID", "14.255.350/0001-03")
	t.Setenv("FIREBIRD_HOST", "erp.internal")
	t.Setenv("FIREBIRD_DB_PATH", "/opt/erp/DADOS.FDB")
	t.Setenv("FIREBIRD_USER", "APP")
	t.Setenv("FIREBIRD_PASSWORD", "secret")

	cfg, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cfg.Database.DSN != "APP:secret@erp.internal:3050/opt/erp/DADOS.FDB" {
		t.Fatalf("DSN = %q", cfg.Database.DSN)
	}
}
