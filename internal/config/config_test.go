package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Permit.Prefix != "05" || cfg.Permit.Deadline != 2*time.Hour {
		t.Fatalf("unexpected permit defaults: %+v", cfg.Permit)
	}
	if len(cfg.Permit.Reminders) != 4 || cfg.Permit.Reminders[0] != 90*time.Minute {
		t.Fatalf("unexpected reminders: %v", cfg.Permit.Reminders)
	}
	if cfg.Permit.FlowTTL != 5*time.Minute || cfg.Permit.LockSweep != 30*time.Second {
		t.Fatalf("unexpected lock defaults: %+v", cfg.Permit)
	}
	if cfg.Admin.CommandPrefix != "/validar" || cfg.Server.Port != 8080 {
		t.Fatalf("unexpected admin/server defaults")
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  base_url: https://permits.example.org/
database:
  url: postgres://localhost/permits
permit:
  prefix: "91"
  deadline: 3h
  reminders: ["2h", "15m"]
  insert_delay: 10ms
admin:
  chat_ids: [1001, 1002]
`)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("FLOW_TTL", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.BaseURL != "https://permits.example.org" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Permit.Prefix != "91" || cfg.Permit.Deadline != 3*time.Hour {
		t.Fatalf("permit = %+v", cfg.Permit)
	}
	if len(cfg.Permit.Reminders) != 2 || cfg.Permit.Reminders[1] != 15*time.Minute {
		t.Fatalf("reminders = %v", cfg.Permit.Reminders)
	}
	if cfg.Permit.InsertDelay != 10*time.Millisecond {
		t.Fatalf("insert delay = %v", cfg.Permit.InsertDelay)
	}
	if cfg.Telegram.BotToken != "123:abc" || cfg.Permit.FlowTTL != 2*time.Minute {
		t.Fatalf("env overrides not applied: %+v", cfg.Telegram)
	}
	if len(cfg.Admin.ChatIDs) != 2 {
		t.Fatalf("chat ids = %v", cfg.Admin.ChatIDs)
	}
}

func TestLoadRejectsReminderOutsideWindow(t *testing.T) {
	path := writeConfig(t, `
permit:
  deadline: 1h
  reminders: ["90m"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected PORT parse error")
	}
}

func TestIDWidth(t *testing.T) {
	if w := Default().Permit.IDWidth; w != 6 {
		t.Fatalf("default id width = %d", w)
	}
	cfg, err := Load(writeConfig(t, "permit:\n  id_width: -1\n"))
	if err != nil || cfg.Permit.IDWidth != -1 {
		t.Fatalf("id_width -1: %v, %v", cfg, err)
	}
	if _, err := Load(writeConfig(t, "permit:\n  id_width: -5\n")); err == nil {
		t.Fatal("expected range error")
	}
}
