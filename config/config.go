// Package config provides environment-based configuration for the
// FieldPass service.
//
// Configuration is loaded from environment variables using Viper, with
// development defaults. Nothing verification-related is hardcoded: the
// relying-party identity, origins, challenge TTL, face threshold, and
// alerting thresholds all come from here.
//
// # Environment Variables
//
//   - DB_TYPE: sqlite, postgres, or mysql. Default: sqlite
//   - DSN: Database connection string. Default: fieldpass.db
//   - SKIP_AUTO_MIGRATE: Skip automatic migrations. Default: false
//   - LOG_LEVEL: debug, info, warn, error. Default: info
//   - PORT: HTTP server port. Default: 8080
//   - REDIS_ADDR: Optional Redis address; when set, challenge and
//     failure state move to Redis for multi-instance deployments
//   - RP_ID / RP_DISPLAY_NAME / RP_ORIGINS: WebAuthn relying party
//   - CHALLENGE_TTL: Challenge validity window. Default: 60s
//   - FACE_MATCH_THRESHOLD: Euclidean accept distance. Default: 0.6
//   - FACE_MIN_DIMS: Minimum descriptor length. Default: 64
//   - FACE_IDENTIFY_MODE: Allow unclaimed identify-all matching.
//     Default: false (claimed-worker verification only)
//   - FAILURE_ALERT_THRESHOLD / FAILURE_ALERT_WINDOW: failure-streak
//     alerting. Defaults: 5 within 15m
//   - JWT_SECRET: HMAC key for the identity provider's subject tokens
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	SkipAutoMigrate bool   `mapstructure:"SKIP_AUTO_MIGRATE"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`

	RPID          string `mapstructure:"RP_ID"`
	RPDisplayName string `mapstructure:"RP_DISPLAY_NAME"`
	RPOrigins     string `mapstructure:"RP_ORIGINS"` // comma separated

	ChallengeTTL       time.Duration `mapstructure:"CHALLENGE_TTL"`
	FaceMatchThreshold float64       `mapstructure:"FACE_MATCH_THRESHOLD"`
	FaceMinDims        int           `mapstructure:"FACE_MIN_DIMS"`
	FaceIdentifyMode   bool          `mapstructure:"FACE_IDENTIFY_MODE"`

	FailureAlertThreshold int           `mapstructure:"FAILURE_ALERT_THRESHOLD"`
	FailureAlertWindow    time.Duration `mapstructure:"FAILURE_ALERT_WINDOW"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
}

// Origins splits the configured origin list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.RPOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "fieldpass.db")
	viper.SetDefault("SKIP_AUTO_MIGRATE", false)
	viper.SetDefault("RP_ID", "localhost")
	viper.SetDefault("RP_DISPLAY_NAME", "FieldPass Attendance")
	viper.SetDefault("RP_ORIGINS", "http://localhost:8080")
	viper.SetDefault("CHALLENGE_TTL", "60s")
	viper.SetDefault("FACE_MATCH_THRESHOLD", 0.6)
	viper.SetDefault("FACE_MIN_DIMS", 64)
	viper.SetDefault("FACE_IDENTIFY_MODE", false)
	viper.SetDefault("FAILURE_ALERT_THRESHOLD", 5)
	viper.SetDefault("FAILURE_ALERT_WINDOW", "15m")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
