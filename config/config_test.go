package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/restmodel/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 15s

database:
  driver: "sqlite"
  dsn: ":memory:"

logging:
  level: debug
  format: console

metrics:
  enabled: true

builtin:
  chores: true

resources:
  - name: book
    path: /library/books
    attributes:
      - name: title
        type: string
      - name: isbn
        type: string
        readonly: true
      - name: long
        type: boolean
        computed: "pages > 500"
      - name: pages
        type: integer
    disable: [delete]
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != ":memory:" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %s, want console", cfg.Logging.Format)
	}
	if !cfg.Builtin.Chores {
		t.Error("Builtin.Chores = false, want true")
	}
	if len(cfg.Resources) != 1 {
		t.Fatalf("len(Resources) = %d, want 1", len(cfg.Resources))
	}

	book := cfg.Resources[0]
	if book.Path != "/library/books" || len(book.Attributes) != 4 {
		t.Errorf("book = %+v", book)
	}
	if book.Attributes[2].Computed != "pages > 500" {
		t.Errorf("computed = %q", book.Attributes[2].Computed)
	}
	if len(book.Disable) != 1 || book.Disable[0] != "delete" {
		t.Errorf("Disable = %v, want [delete]", book.Disable)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "builtin:\n  chores: true\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("default ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("default Driver = %s, want memory", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s", cfg.Metrics.Path)
	}
	if cfg.Auth.Header != "X-API-Key" || cfg.Auth.Enabled() {
		t.Errorf("default Auth = %+v", cfg.Auth)
	}
}

func TestLoad_SQLiteDefaultDSN(t *testing.T) {
	cfg := writeAndLoad(t, "database:\n  driver: sqlite\nbuiltin:\n  chores: true\n")

	if cfg.Database.DSN != "restmodel.db" {
		t.Errorf("DSN = %s, want restmodel.db", cfg.Database.DSN)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/tmp/books.db")

	cfg := writeAndLoad(t, `
database:
  driver: sqlite
  dsn: ${TEST_DB_PATH}
auth:
  api_key_hash: "$2a$10$abcdefghijklmnopqrstuv"
builtin:
  chores: true
`)

	if cfg.Database.DSN != "/tmp/books.db" {
		t.Errorf("DSN = %s, want /tmp/books.db", cfg.Database.DSN)
	}
	if cfg.Auth.APIKeyHash != "$2a$10$abcdefghijklmnopqrstuv" {
		t.Errorf("APIKeyHash = %s, bare $ references must be kept", cfg.Auth.APIKeyHash)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESTMODEL_SERVER_PORT", "7070")
	t.Setenv("RESTMODEL_LOG_LEVEL", "warn")
	t.Setenv("RESTMODEL_DATABASE_DRIVER", "sqlite")
	t.Setenv("RESTMODEL_METRICS_ENABLED", "yes")
	t.Setenv("RESTMODEL_BUILTIN_CHORES", "1")

	cfg := writeAndLoad(t, "server:\n  port: 9090\n")

	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "restmodel.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if !cfg.Metrics.Enabled || !cfg.Builtin.Chores {
		t.Errorf("Metrics.Enabled = %v, Builtin.Chores = %v", cfg.Metrics.Enabled, cfg.Builtin.Chores)
	}
}

func TestLoad_ResourceFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "books.yaml"), []byte(`
resources:
  - name: book
    attributes:
      - name: title
        type: string
`), 0644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "restmodel.yaml")
	if err := os.WriteFile(path, []byte("resource_files: [books.yaml]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Resources) != 1 || cfg.Resources[0].Name != "book" {
		t.Errorf("Resources = %+v", cfg.Resources)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no resources",
			content: "server:\n  port: 8080\n",
			wantErr: "no resources configured",
		},
		{
			name:    "bad driver",
			content: "database:\n  driver: postgres\nbuiltin:\n  chores: true\n",
			wantErr: "database.driver",
		},
		{
			name:    "bad level",
			content: "logging:\n  level: loud\nbuiltin:\n  chores: true\n",
			wantErr: "logging.level",
		},
		{
			name:    "bad format",
			content: "logging:\n  format: xml\nbuiltin:\n  chores: true\n",
			wantErr: "logging.format",
		},
		{
			name:    "bad hash",
			content: "auth:\n  api_key_hash: plaintext\nbuiltin:\n  chores: true\n",
			wantErr: "bcrypt",
		},
		{
			name: "bad attribute type",
			content: `
resources:
  - name: book
    attributes:
      - name: title
        type: text
`,
			wantErr: "unknown type",
		},
		{
			name: "duplicate resource",
			content: `
builtin:
  chores: true
resources:
  - name: chore
    attributes:
      - name: title
        type: string
`,
			wantErr: "defined twice",
		},
		{
			name:    "malformed yaml",
			content: "server: [",
			wantErr: "parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "restmodel.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := config.Load(path)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := config.Load("/nonexistent/restmodel.yaml"); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if !cfg.Builtin.Chores || cfg.Database.Driver != "memory" {
		t.Errorf("fallback config = %+v", cfg)
	}
}

func TestFingerprint(t *testing.T) {
	a := config.Default()
	b := config.Default()
	b.Logging.Level = "debug"
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("log level must not change the fingerprint")
	}

	b.Server.Port = 9999
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("server port must change the fingerprint")
	}
}

func TestServerAddr(t *testing.T) {
	s := config.ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := s.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr = %s", got)
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restmodel.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}
