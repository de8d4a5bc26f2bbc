// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, e.g. config.production.yaml
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or the project root so
// binaries and tests behave the same regardless of cwd.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "roommate-engine"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9102"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Database.Postgres.Host == "" {
		cfg.Database.Postgres.Host = "localhost"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}

	if len(cfg.Scoring.Weights) == 0 {
		cfg.Scoring.Weights = DefaultScoringWeights()
	}
	if cfg.Groups.MinViabilityScore == 0 {
		cfg.Groups.MinViabilityScore = 40
	}
	if cfg.Groups.MinViableSize == 0 {
		cfg.Groups.MinViableSize = 2
	}
	if cfg.Groups.InvitationTTL == 0 {
		cfg.Groups.InvitationTTL = 7 * 24 * 3600
	}
	if cfg.Voting.QuorumFraction == 0 {
		cfg.Voting.QuorumFraction = 0.51
	}
	if cfg.Voting.ProposalTTL == 0 {
		cfg.Voting.ProposalTTL = 72 * 3600
	}
	if cfg.Voting.SweepInterval == 0 {
		cfg.Voting.SweepInterval = 60
	}
	if cfg.Ranking.CacheTTL == 0 {
		cfg.Ranking.CacheTTL = 6 * 3600
	}
	if cfg.Ranking.DefaultLimit == 0 {
		cfg.Ranking.DefaultLimit = 20
	}
}

// DefaultScoringWeights mirrors the axis proportions the product shipped
// with. Relative values only; the scorer normalizes to sum 1.
func DefaultScoringWeights() map[string]float64 {
	return map[string]float64{
		"budget":      0.25,
		"location":    0.20,
		"movein":      0.05,
		"cleanliness": 0.125,
		"social":      0.10,
		"noise":       0.075,
		"smoking":     0.10,
		"pets":        0.05,
		"interests":   0.05,
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Voting.QuorumFraction <= 0 || cfg.Voting.QuorumFraction > 1 {
		return fmt.Errorf("voting.quorum_fraction must be in (0, 1], got %v", cfg.Voting.QuorumFraction)
	}
	if cfg.Groups.MinViableSize < 2 {
		return fmt.Errorf("groups.min_viable_size must be at least 2, got %d", cfg.Groups.MinViableSize)
	}
	if cfg.Groups.MinViabilityScore < 0 || cfg.Groups.MinViabilityScore > 100 {
		return fmt.Errorf("groups.min_viability_score must be in [0, 100], got %v", cfg.Groups.MinViabilityScore)
	}
	var sum float64
	for axis, w := range cfg.Scoring.Weights {
		if w < 0 {
			return fmt.Errorf("scoring.weights.%s must be non-negative, got %v", axis, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("scoring.weights must not all be zero")
	}
	return nil
}
