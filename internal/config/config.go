package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type FilesConfig struct {
	RootDir  string `yaml:"root_dir"`
	FontPath string `yaml:"font_path"`
}

type TelegramConfig struct {
	BotToken   string `yaml:"bot_token"`
	SetWebhook bool   `yaml:"set_webhook"`
}

// PermitConfig drives ticket allocation, the submission lock and the payment window.
type PermitConfig struct {
	Prefix          string          `yaml:"prefix"`
	IDWidth         int             `yaml:"id_width"` // -1 disables zero padding
	IDStride        int64           `yaml:"id_stride"`
	MaxAllocRetries int             `yaml:"max_alloc_retries"`
	Deadline        time.Duration   `yaml:"deadline"`
	Reminders       []time.Duration `yaml:"reminders"`
	FlowTTL         time.Duration   `yaml:"flow_ttl"`
	LockSweep       time.Duration   `yaml:"lock_sweep"`
	ValidityDays    int             `yaml:"validity_days"`
	InsertAttempts  int             `yaml:"insert_attempts"`
	InsertDelay     time.Duration   `yaml:"insert_delay"`
	Entity          string          `yaml:"entity"`
}

type AdminUser struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	RoleID       int    `yaml:"role_id"`
}

type AdminConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	CommandPrefix string        `yaml:"command_prefix"`
	ChatIDs       []int64       `yaml:"chat_ids"`
	Users         []AdminUser   `yaml:"users"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	AuditTo      string `yaml:"audit_to"`
}

type Config struct {
	Server struct {
		Port    int    `yaml:"port"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Files    FilesConfig    `yaml:"files"`
	Permit   PermitConfig   `yaml:"permit"`
	Admin    AdminConfig    `yaml:"admin"`
	Email    EmailConfig    `yaml:"email"`
}

// LoadConfig reads DefaultPath and panics on failure.
func LoadConfig() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

// Default returns the built-in configuration, ignoring files and env.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// Load decodes the yaml file at path, applies environment overrides and
// fills defaults. A missing file is not an error: env and defaults still apply.
func Load(path string) (*Config, error) {
	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		c.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		c.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("BASE_URL")); v != "" {
		c.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_JWT_SECRET")); v != "" {
		c.Admin.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("FOLIO_PREFIX")); v != "" {
		c.Permit.Prefix = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	// FLOW_TTL is in seconds, as the bot always read it.
	if v := strings.TrimSpace(os.Getenv("FLOW_TTL")); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FLOW_TTL: %w", err)
		}
		c.Permit.FlowTTL = time.Duration(secs) * time.Second
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Files.RootDir == "" {
		c.Files.RootDir = "./files"
	}
	p := &c.Permit
	if p.Prefix == "" {
		p.Prefix = "05"
	}
	if p.IDWidth == 0 {
		p.IDWidth = 6
	}
	if p.IDStride <= 0 {
		p.IDStride = 10
	}
	if p.MaxAllocRetries <= 0 {
		p.MaxAllocRetries = 5
	}
	if p.Deadline <= 0 {
		p.Deadline = 2 * time.Hour
	}
	if p.Reminders == nil {
		p.Reminders = []time.Duration{90 * time.Minute, 60 * time.Minute, 30 * time.Minute, 10 * time.Minute}
	}
	if p.FlowTTL <= 0 {
		p.FlowTTL = 5 * time.Minute
	}
	if p.LockSweep <= 0 {
		p.LockSweep = 30 * time.Second
	}
	if p.ValidityDays <= 0 {
		p.ValidityDays = 30
	}
	if p.InsertAttempts <= 0 {
		p.InsertAttempts = 4
	}
	if p.InsertDelay <= 0 {
		p.InsertDelay = 600 * time.Millisecond
	}
	if p.Entity == "" {
		p.Entity = "CDMX"
	}
	if c.Admin.CommandPrefix == "" {
		c.Admin.CommandPrefix = "/validar"
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

func (c *Config) validate() error {
	for _, r := range c.Permit.Reminders {
		if r <= 0 || r >= c.Permit.Deadline {
			return fmt.Errorf("permit.reminders: %s is outside the %s window", r, c.Permit.Deadline)
		}
	}
	if c.Permit.IDWidth < -1 || c.Permit.IDWidth > 18 {
		return fmt.Errorf("permit.id_width: %d out of range", c.Permit.IDWidth)
	}
	return nil
}
