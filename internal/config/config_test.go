package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmsconsultores/cmsweb/internal/contacts"
	"github.com/cmsconsultores/cmsweb/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Server.BodyLimit != 65536 {
		t.Errorf("Server.BodyLimit = %d", cfg.Server.BodyLimit)
	}
	if cfg.Storage.Driver != storage.DriverMemory || cfg.Storage.Bucket != "cms-web" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Ledger.Key != contacts.DefaultKey || cfg.Ledger.Strategy != contacts.StrategyList {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("Auth.TokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled without a secret")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CMSWEB_SERVER_PORT", "8080")
	t.Setenv("CMSWEB_STORAGE_DRIVER", "minio")
	t.Setenv("CMSWEB_STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("CMSWEB_STORAGE_USESSL", "true")
	t.Setenv("CMSWEB_LEDGER_STRATEGY", "head")
	t.Setenv("CMSWEB_LEDGER_MAXATTEMPTS", "9")
	t.Setenv("CMSWEB_AUTH_JWTSECRET", "s3cr3t")
	t.Setenv("CMSWEB_AUTH_TOKENTTL", "30m")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != storage.DriverMinIO || cfg.Storage.Endpoint != "localhost:9000" || !cfg.Storage.UseSSL {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Ledger.Strategy != contacts.StrategyHead || cfg.Ledger.MaxAttempts != 9 {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if !cfg.Auth.Enabled() || cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CMSWEB_LEDGER_KEY=leads.json\nCMSWEB_SERVER_PORT=4000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CMSWEB_SERVER_PORT", "5000")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Ledger.Key != "leads.json" {
		t.Errorf("Ledger.Key = %q", cfg.Ledger.Key)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("process env should win over .env, got port %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad driver", map[string]string{"CMSWEB_STORAGE_DRIVER": "s3"}, "storage.driver"},
		{"minio without endpoint", map[string]string{"CMSWEB_STORAGE_DRIVER": "minio"}, "storage.endpoint"},
		{"bad strategy", map[string]string{"CMSWEB_LEDGER_STRATEGY": "scan"}, "ledger.strategy"},
		{"bad port", map[string]string{"CMSWEB_SERVER_PORT": "70000"}, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFile error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
