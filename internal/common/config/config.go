// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Scoring       ScoringConfig      `mapstructure:"scoring"`
	Groups        GroupsConfig       `mapstructure:"groups"`
	Voting        VotingConfig       `mapstructure:"voting"`
	Ranking       RankingConfig      `mapstructure:"ranking"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration Sections ---

// ScoringConfig holds the compatibility scoring knobs. Weights are
// normalized before use so the yaml values only need relative proportions.
type ScoringConfig struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// GroupsConfig holds group-formation thresholds.
type GroupsConfig struct {
	// MinViabilityScore is the pairwise score a candidate must reach with
	// every current member before joining.
	MinViabilityScore float64 `mapstructure:"min_viability_score"`
	// MinViableSize is the size below which a group disbands.
	MinViableSize int `mapstructure:"min_viable_size"`
	// InvitationTTL bounds how long an invitation stays answerable, in
	// seconds.
	InvitationTTL int `mapstructure:"invitation_ttl"`
}

// VotingConfig holds the consensus protocol knobs.
type VotingConfig struct {
	// QuorumFraction is the fraction of members that must cast a
	// non-abstain vote for a proposal to resolve.
	QuorumFraction float64 `mapstructure:"quorum_fraction"`
	// ProposalTTL is the default open window when the caller supplies no
	// deadline, in seconds.
	ProposalTTL int `mapstructure:"proposal_ttl"`
	// SweepInterval is the expiry sweeper period, in seconds.
	SweepInterval int `mapstructure:"sweep_interval"`
}

// RankingConfig holds candidate-ranking knobs.
type RankingConfig struct {
	// CacheTTL is the Redis score-cache expiry, in seconds. Entries are
	// keyed by profile versions, so the TTL only bounds memory.
	CacheTTL int `mapstructure:"cache_ttl"`
	// DefaultLimit is the page size when the caller passes limit <= 0.
	DefaultLimit int `mapstructure:"default_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NotificationConfig holds the SNS event publishing settings.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SNS    struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}
