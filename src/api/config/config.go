package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/landvote/src/api/data"
	"github.com/stake-plus/landvote/src/governance"
	"gorm.io/gorm"
)

type Config struct {
	MySQLDSN  string
	RedisURL  string
	JWTSecret string
	Port      string

	EnableSSL bool
	SSLCert   string
	SSLKey    string

	AllowedOrigins []string
	RateLimit      int

	Policy        governance.Policy
	Catalog       governance.Catalog
	SweepInterval time.Duration

	DiscordToken     string
	DiscordChannelID string
	DiscordGuildID   string
}

// Load reads settings from the database (when db is non-nil), then the
// environment, then defaults.
func Load(db *gorm.DB) (Config, error) {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v (falling back to env)", err)
		}
	}

	cfg := Config{
		MySQLDSN:         os.Getenv("MYSQL_DSN"),
		RedisURL:         GetSetting("redis_url", "REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:        GetSetting("jwt_secret", "JWT_SECRET", ""),
		Port:             GetSetting("api_port", "PORT", "8080"),
		EnableSSL:        getBoolSetting("enable_ssl", "ENABLE_SSL", false),
		SSLCert:          GetSetting("ssl_cert", "SSL_CERT", ""),
		SSLKey:           GetSetting("ssl_key", "SSL_KEY", ""),
		AllowedOrigins:   governance.SplitList(GetSetting("allowed_origins", "ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimit:        getIntSetting("rate_limit", "RATE_LIMIT", 60),
		SweepInterval:    getDurationSetting("sweep_interval", "SWEEP_INTERVAL", time.Minute),
		DiscordToken:     GetSetting("discord_token", "DISCORD_TOKEN", ""),
		DiscordChannelID: GetSetting("discord_channel_id", "DISCORD_CHANNEL_ID", ""),
		DiscordGuildID:   GetSetting("discord_guild_id", "DISCORD_GUILD_ID", ""),
	}
	cfg.Policy, cfg.Catalog = governanceSettings()

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is not set")
	}
	if cfg.EnableSSL && (cfg.SSLCert == "" || cfg.SSLKey == "") {
		return Config{}, fmt.Errorf("config: ENABLE_SSL requires SSL_CERT and SSL_KEY")
	}
	return cfg, nil
}

// LoadGovernance reads only the tally policy and catalog, for tools that do
// not serve the API.
func LoadGovernance(db *gorm.DB) (governance.Policy, governance.Catalog) {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: load settings: %v (falling back to env)", err)
		}
	}
	return governanceSettings()
}

func governanceSettings() (governance.Policy, governance.Catalog) {
	policy := governance.Policy{
		Quorum:   getIntSetting("quorum_threshold", "QUORUM_THRESHOLD", governance.DefaultPolicy().Quorum),
		TieBreak: governance.ParseTieBreak(GetSetting("tie_break", "TIE_BREAK", string(governance.TieReject))),
	}
	if policy.Quorum < 1 {
		log.Printf("config: quorum_threshold %d below 1, using 1", policy.Quorum)
		policy.Quorum = 1
	}
	catalog := governance.DefaultCatalog()
	if v := GetSetting("regions", "REGIONS", ""); v != "" {
		catalog.Regions = governance.SplitList(v)
	}
	if v := GetSetting("categories", "CATEGORIES", ""); v != "" {
		catalog.Categories = governance.SplitList(v)
	}
	return policy, catalog
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(name, envKey string, defaultValue bool) bool {
	return parseBoolDefault(GetSetting(name, envKey, ""), defaultValue)
}

func getIntSetting(name, envKey string, defaultValue int) int {
	v := GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", name, v, defaultValue)
		return defaultValue
	}
	return n
}

func getDurationSetting(name, envKey string, defaultValue time.Duration) time.Duration {
	v := GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("config: %s=%q is not a positive duration, using %s", name, v, defaultValue)
		return defaultValue
	}
	return d
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
