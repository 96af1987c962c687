package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string
	}

	// Database configuration, only used when the directory backend is postgres
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration for cross-instance room claims
	Redis struct {
		URL     string
		RoomTTL time.Duration
	}

	// Directory configuration
	Directory struct {
		Backend  string // static | postgres
		CacheTTL time.Duration
	}

	// Call holds the session timings and media settings
	Call struct {
		RemoteJoinDelay     time.Duration
		PeriodicInterval    time.Duration
		MaxPeriodicMessages int
		ReplyDelayMin       time.Duration
		ReplyDelayMax       time.Duration
		OpeningSpeaking     time.Duration
		PeriodicSpeaking    time.Duration
		ReplySpeaking       time.Duration
		TickInterval        time.Duration
		FrameRate           int
		STUNURLs            []string
		TURNURLs            []string
		TURNUsername        string
		AvatarFetchTimeout  time.Duration
		PeerMode            string // loopback | webrtc
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Vault configuration
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}

	// Observability settings
	Observability struct {
		TracingEnabled bool
		ServiceName    string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = Load()
	})

	return instance
}

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9091")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "companion-calls")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	// Redis config
	cfg.Redis.URL = getEnvString("REDIS_URL", "")
	cfg.Redis.RoomTTL = getEnvDuration("ROOM_CLAIM_TTL", 2*time.Hour)

	// Directory config
	cfg.Directory.Backend = getEnvString("DIRECTORY_BACKEND", "static")
	cfg.Directory.CacheTTL = getEnvDuration("DIRECTORY_CACHE_TTL", time.Minute)

	// Call config
	cfg.Call.RemoteJoinDelay = getEnvDuration("CALL_REMOTE_JOIN_DELAY", 2*time.Second)
	cfg.Call.PeriodicInterval = getEnvDuration("CALL_PERIODIC_INTERVAL", 30*time.Second)
	cfg.Call.MaxPeriodicMessages = getEnvInt("CALL_MAX_PERIODIC_MESSAGES", 0)
	cfg.Call.ReplyDelayMin = getEnvDuration("CALL_REPLY_DELAY_MIN", 1500*time.Millisecond)
	cfg.Call.ReplyDelayMax = getEnvDuration("CALL_REPLY_DELAY_MAX", 4500*time.Millisecond)
	cfg.Call.OpeningSpeaking = getEnvDuration("CALL_OPENING_SPEAKING", 3*time.Second)
	cfg.Call.PeriodicSpeaking = getEnvDuration("CALL_PERIODIC_SPEAKING", 2*time.Second)
	cfg.Call.ReplySpeaking = getEnvDuration("CALL_REPLY_SPEAKING", 4*time.Second)
	cfg.Call.TickInterval = getEnvDuration("CALL_TICK_INTERVAL", time.Second)
	cfg.Call.FrameRate = getEnvInt("CALL_FRAME_RATE", 30)
	cfg.Call.STUNURLs = getEnvStringSlice("ICE_STUN_URLS", []string{"stun:stun.l.google.com:19302"})
	cfg.Call.TURNURLs = getEnvStringSlice("ICE_TURN_URLS", nil)
	cfg.Call.TURNUsername = getEnvString("ICE_TURN_USERNAME", "")
	cfg.Call.AvatarFetchTimeout = getEnvDuration("AVATAR_FETCH_TIMEOUT", 5*time.Second)
	cfg.Call.PeerMode = getEnvString("CALL_PEER_MODE", "loopback")

	// Security config
	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Vault config
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "companion-calls")

	// Cache settings
	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	// Observability
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "companion-calls")

	return cfg
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
