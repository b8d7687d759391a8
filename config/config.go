package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds the full runtime configuration. Secrets have no
// in-code defaults and must come from the JSON file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	DatabaseURI        string
	DBHost             string
	DBPort             string
	DBUser             string
	DBPassword         string
	DBName             string
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	RateLimitPerMinute int
	AllowedOrigins     []string
	OAuthRedirectBase  string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Feed configuration
	DefaultPageSize int
	MaxPageSize     int
	Categories      []string
	// Presence configuration
	PresenceIntervalSec  int
	PresenceOnlineWindow int // seconds since last heartbeat to still count as online
	// Redis for caching/presence
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Admins
	AdminUsernames []string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration from environment variables. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	dec := json.NewDecoder(f)
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = jsonStr(app, "AppPort")
		out.JWTSecret = jsonStr(app, "JWTSecret")
		if v := jsonInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := jsonList(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if v := jsonStr(app, "OAuthRedirectBase"); v != "" {
			out.OAuthRedirectBase = v
		}
		if list := jsonList(app, "AdminUsernames"); len(list) > 0 {
			out.AdminUsernames = list
		}
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := jsonStr(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := jsonStr(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if fd, ok := raw["feed"].(map[string]any); ok {
		if v := jsonInt(fd, "DefaultPageSize"); v != 0 {
			out.DefaultPageSize = v
		}
		if v := jsonInt(fd, "MaxPageSize"); v != 0 {
			out.MaxPageSize = v
		}
		if list := jsonList(fd, "Categories"); len(list) > 0 {
			out.Categories = list
		}
	}

	if pr, ok := raw["presence"].(map[string]any); ok {
		if v := jsonInt(pr, "IntervalSec"); v != 0 {
			out.PresenceIntervalSec = v
		}
		if v := jsonInt(pr, "OnlineWindowSec"); v != 0 {
			out.PresenceOnlineWindow = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = jsonStr(dbs, "DatabaseURI")
		out.DBHost = jsonStr(dbs, "DBHost")
		out.DBPort = jsonStr(dbs, "DBPort")
		out.DBUser = jsonStr(dbs, "DBUser")
		out.DBPassword = jsonStr(dbs, "DBPassword")
		out.DBName = jsonStr(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = jsonStr(rds, "RedisHost")
		if v := jsonInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := jsonInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = jsonStr(rds, "RedisPassword")
	}

	if oa, ok := raw["oauth"].(map[string]any); ok {
		out.GitHubClientID = jsonStr(oa, "GitHubClientID")
		out.GitHubClientSecret = jsonStr(oa, "GitHubClientSecret")
		out.GoogleClientID = jsonStr(oa, "GoogleClientID")
		out.GoogleClientSecret = jsonStr(oa, "GoogleClientSecret")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := jsonStr(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := jsonStr(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := jsonInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := jsonInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := jsonInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = jsonBool(lg, "Compress")
	}

	return nil
}

func jsonStr(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func jsonInt(m map[string]any, key string) int {
	switch t := m[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case json.Number:
		i, _ := t.Int64()
		return int(i)
	}
	return 0
}

func jsonBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func jsonList(m map[string]any, key string) []string {
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, it := range arr {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize == 0 {
		c.MaxPageSize = 50
	}
	if len(c.Categories) == 0 {
		c.Categories = []string{"general", "questions", "showcase", "tutorials", "career", "feedback"}
	}
	if c.PresenceIntervalSec == 0 {
		c.PresenceIntervalSec = 30
	}
	if c.PresenceOnlineWindow == 0 {
		// Two missed heartbeats before a member drops off the roster
		c.PresenceOnlineWindow = 90
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "community"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	envStr(&c.AppPort, "APP_PORT")
	envStr(&c.JWTSecret, "JWT_SECRET")
	envStr(&c.GinMode, "GIN_MODE")
	envStr(&c.GinPath, "GIN_PATH")

	envStr(&c.DatabaseURI, "DATABASE_URI")
	envStr(&c.DBHost, "DB_HOST")
	envStr(&c.DBPort, "DB_PORT")
	envStr(&c.DBUser, "DB_USER")
	envStr(&c.DBPassword, "DB_PASSWORD")
	envStr(&c.DBName, "DB_NAME")

	envStr(&c.GitHubClientID, "GITHUB_CLIENT_ID")
	envStr(&c.GitHubClientSecret, "GITHUB_CLIENT_SECRET")
	envStr(&c.GoogleClientID, "GOOGLE_CLIENT_ID")
	envStr(&c.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	envStr(&c.OAuthRedirectBase, "OAUTH_REDIRECT_BASE")

	envInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	envList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	envList(&c.AdminUsernames, "ADMIN_USERNAMES")

	envInt(&c.DefaultPageSize, "FEED_DEFAULT_PAGE_SIZE")
	envInt(&c.MaxPageSize, "FEED_MAX_PAGE_SIZE")
	envList(&c.Categories, "FEED_CATEGORIES")

	envInt(&c.PresenceIntervalSec, "PRESENCE_INTERVAL_SEC")
	envInt(&c.PresenceOnlineWindow, "PRESENCE_ONLINE_WINDOW_SEC")

	envStr(&c.RedisHost, "REDIS_HOST")
	envInt(&c.RedisPort, "REDIS_PORT")
	envInt(&c.RedisDB, "REDIS_DB")
	envStr(&c.RedisPassword, "REDIS_PASSWORD")

	envStr(&c.LogLevel, "LOG_LEVEL")
	envStr(&c.LogPath, "LOG_PATH")
	envInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	envInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	envInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "1" || strings.EqualFold(v, "true")
	}
}

func envStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

// IsAdmin reports whether the username is configured as an admin.
func IsAdmin(username string) bool {
	for _, u := range Get().AdminUsernames {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}

// ValidCategory reports whether the category slug is configured.
func ValidCategory(slug string) bool {
	for _, c := range Get().Categories {
		if c == slug {
			return true
		}
	}
	return false
}
