package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the gateway.
type Config struct {
	Port   string
	DBPath string

	// Broker credentials
	AlpacaKey    string
	AlpacaSecret string
	AlpacaPaper  bool

	// Quote stream
	EnableQuoteStream bool
	StreamFeed        string // "iex" or "sip"
	StreamSymbols     []string

	// Background asset cache refresh
	AssetRefreshHours int

	// Auth
	JWTSecret string

	// Risk policy (env defaults, optionally overridden by a YAML file)
	Risk RiskPolicy

	// Path to the optional YAML policy file
	RiskPolicyPath string
}

// RiskPolicy is the static pre-trade policy a service instance is built
// from. It is read once at startup and never mutated afterwards.
type RiskPolicy struct {
	MaxOrderNotional    float64  `yaml:"max_order_notional" json:"max_order_notional"`
	MaxShareQuantity    float64  `yaml:"max_share_quantity" json:"max_share_quantity"`
	AllowedSymbols      []string `yaml:"allowed_symbols" json:"allowed_symbols"`
	BlockedSymbols      []string `yaml:"blocked_symbols" json:"blocked_symbols"`
	RegularHoursOnly    bool     `yaml:"regular_hours_only" json:"regular_hours_only"`
	RequireTradable     bool     `yaml:"require_tradable" json:"require_tradable"`
	RequireFractionable bool     `yaml:"require_fractionable" json:"require_fractionable"`
	MinPrice            float64  `yaml:"min_price" json:"min_price"`
	MaxPrice            float64  `yaml:"max_price" json:"max_price"`
	AssetCacheTTLHours  int      `yaml:"asset_cache_ttl_hours" json:"asset_cache_ttl_hours"`
}

// policyFile is the top-level YAML structure.
type policyFile struct {
	Risk RiskPolicy `yaml:"risk"`
}

// Load reads environment variables (optionally via .env) into Config, then
// applies the YAML policy file when one is configured and present.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "./data/gateway.db"),
		AlpacaKey:         os.Getenv("ALPACA_API_KEY"),
		AlpacaSecret:      os.Getenv("ALPACA_API_SECRET"),
		AlpacaPaper:       getEnv("ALPACA_PAPER", "true") == "true",
		EnableQuoteStream: getEnv("ENABLE_QUOTE_STREAM", "false") == "true",
		StreamFeed:        getEnv("STREAM_FEED", "iex"),
		StreamSymbols:     splitAndTrim(getEnv("STREAM_SYMBOLS", "")),
		AssetRefreshHours: getEnvInt("ASSET_REFRESH_HOURS", 24),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		RiskPolicyPath:    getEnv("RISK_POLICY_PATH", ""),
		Risk: RiskPolicy{
			MaxOrderNotional:    getEnvFloat("RISK_MAX_ORDER_NOTIONAL", 0),
			MaxShareQuantity:    getEnvFloat("RISK_MAX_SHARE_QUANTITY", 0),
			AllowedSymbols:      splitAndTrim(getEnv("RISK_ALLOWED_SYMBOLS", "")),
			BlockedSymbols:      splitAndTrim(getEnv("RISK_BLOCKED_SYMBOLS", "")),
			RegularHoursOnly:    getEnv("RISK_REGULAR_HOURS_ONLY", "false") == "true",
			RequireTradable:     getEnv("RISK_REQUIRE_TRADABLE", "true") == "true",
			RequireFractionable: getEnv("RISK_REQUIRE_FRACTIONABLE", "false") == "true",
			MinPrice:            getEnvFloat("RISK_MIN_PRICE", 0),
			MaxPrice:            getEnvFloat("RISK_MAX_PRICE", 0),
			AssetCacheTTLHours:  getEnvInt("RISK_ASSET_CACHE_TTL_HOURS", 24),
		},
	}

	if cfg.RiskPolicyPath != "" {
		policy, err := LoadPolicyFile(cfg.RiskPolicyPath)
		if err != nil {
			return nil, fmt.Errorf("load risk policy file: %w", err)
		}
		cfg.Risk = *policy
	}

	return cfg, nil
}

// LoadPolicyFile reads a RiskPolicy from a YAML file.
func LoadPolicyFile(path string) (*RiskPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Risk.AssetCacheTTLHours <= 0 {
		file.Risk.AssetCacheTTLHours = 24
	}
	return &file.Risk, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
