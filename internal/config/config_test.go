package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/labbot/core/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, `
telegram:
  token: from-file
  admin_id: 42
database:
  name: labs
  migrate_backoff: 2s
uploads:
  dir: /var/lib/labbot
ops:
  listen: " :9090 "
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("UPLOAD_REMOVE_ON_DELETE", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Telegram.AdminID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.MigrateAttempts != 10 || cfg.Database.MigrateBackoff != 2*time.Second {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Uploads.Dir != "/var/lib/labbot" || !cfg.Uploads.RemoveOnDelete {
		t.Fatalf("uploads = %+v", cfg.Uploads)
	}
	if cfg.Ops.Listen != ":9090" {
		t.Fatalf("ops listen = %q", cfg.Ops.Listen)
	}
	if cfg.CoreConfig() != &cfg.Config {
		t.Fatal("CoreConfig must point at the embedded config")
	}
}

func TestLoadEnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("ADMIN_ID", "7")
	t.Setenv("DB_NAME", "labs")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Uploads.Dir != "lab_files" || cfg.Ops.Listen != "" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Uploads, cfg.Ops)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("BOT_TOKEN=dotenv\nADMIN_ID=9\nDB_NAME=labs\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets real process variables; register them for cleanup
	for _, k := range []string{"BOT_TOKEN", "ADMIN_ID", "DB_NAME"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "dotenv" || cfg.Telegram.AdminID != 9 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := map[string]string{
		"no token":    "telegram:\n  admin_id: 1\ndatabase:\n  name: x\n",
		"no admin":    "telegram:\n  token: t\ndatabase:\n  name: x\n",
		"no database": "telegram:\n  token: t\n  admin_id: 1\n",
		"bad mode":    "telegram:\n  token: t\n  admin_id: 1\n  run_mode: carrier-pigeon\ndatabase:\n  name: x\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"BOT_TOKEN", "ADMIN_ID", "DB_NAME", "TELEGRAM_RUN_MODE"} {
				t.Setenv(k, "")
				os.Unsetenv(k)
			}
			if _, err := Load(writeFile(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
