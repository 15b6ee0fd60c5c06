package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yourorg/scan-gateway/internal/errors"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string

	JWTSecret    string
	JWTExpiresIn time.Duration

	AcunetixURL         string
	AcunetixAPIKey      string
	AcunetixTimeout     time.Duration
	AcunetixInsecureTLS bool

	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
	ReportsBucket string
	ScratchDir    string

	StatsCacheTTL        time.Duration
	ReconcileInterval    time.Duration
	ReconcileConcurrency int

	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// ArchiveEnabled reports whether downloaded reports are copied to object storage.
func (c Config) ArchiveEnabled() bool {
	return c.S3Endpoint != "" && c.ReportsBucket != ""
}

// LoadDotenv loads .env files if present. This helps local dev.
// Try current directory and one level up (in case run from cmd/gateway).
func LoadDotenv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("ACUNETIX_TIMEOUT", "30s")
	v.SetDefault("ACUNETIX_INSECURE_TLS", false)
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("SCRATCH_DIR", filepath.Join(os.TempDir(), "scan-gateway"))
	v.SetDefault("STATS_CACHE_TTL", "15s")
	v.SetDefault("RECONCILE_INTERVAL", "0s")
	v.SetDefault("RECONCILE_CONCURRENCY", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from v, which must have had SetDefaults applied.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DatabaseURL:          v.GetString("DATABASE_URL"),
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		JWTExpiresIn:         v.GetDuration("JWT_EXPIRES_IN"),
		AcunetixURL:          strings.TrimRight(v.GetString("ACUNETIX_API_URL"), "/"),
		AcunetixAPIKey:       v.GetString("ACUNETIX_API_KEY"),
		AcunetixTimeout:      v.GetDuration("ACUNETIX_TIMEOUT"),
		AcunetixInsecureTLS:  v.GetBool("ACUNETIX_INSECURE_TLS"),
		S3Endpoint:           v.GetString("S3_ENDPOINT"),
		S3AccessKey:          v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:          v.GetString("S3_SECRET_KEY"),
		S3UseSSL:             v.GetBool("S3_USE_SSL"),
		ReportsBucket:        v.GetString("REPORTS_BUCKET"),
		ScratchDir:           v.GetString("SCRATCH_DIR"),
		StatsCacheTTL:        v.GetDuration("STATS_CACHE_TTL"),
		ReconcileInterval:    v.GetDuration("RECONCILE_INTERVAL"),
		ReconcileConcurrency: v.GetInt("RECONCILE_CONCURRENCY"),
		CORSOrigins:          splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
	}
	// quick sanity
	required := []struct{ key, val string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"JWT_SECRET", cfg.JWTSecret},
		{"ACUNETIX_API_URL", cfg.AcunetixURL},
		{"ACUNETIX_API_KEY", cfg.AcunetixAPIKey},
	}
	for _, r := range required {
		if r.val == "" {
			return Config{}, errors.NewConfigError(r.key, "is required", nil)
		}
	}
	if cfg.JWTExpiresIn <= 0 {
		return Config{}, errors.NewConfigError("JWT_EXPIRES_IN", "must be a positive duration", nil)
	}
	if cfg.AcunetixTimeout <= 0 {
		cfg.AcunetixTimeout = 30 * time.Second
	}
	if cfg.ReconcileConcurrency < 1 {
		cfg.ReconcileConcurrency = 1
	}
	if cfg.S3Endpoint != "" && cfg.ReportsBucket == "" {
		return Config{}, errors.NewConfigError("REPORTS_BUCKET", "is required when S3_ENDPOINT is set", nil)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
