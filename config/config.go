package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the process environment, optionally seeded from a .env file.
type Config struct {
	Port string

	// AudioDirs is the raw AUDIO_DIR value: a comma-separated list of
	// path[:displayName] entries. Parsed by media.NewRegistry.
	AudioDirs string

	StreamChunkSize   int   // bytes pumped per write, bounds cancel latency
	JSONMaxBytes      int64 // sidecars up to this size are buffered and validated
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	WriteTimeout      time.Duration // 0 keeps long audio streams alive

	CORSAllowOrigin string
	MetricsEnabled  bool

	// Rate limiting
	RateLimitEnabled     bool
	RateLimitWindow      time.Duration
	MaxRequestsPerWindow int
	AudioFileLimit       int
	RateLimitStore       string // "memory" or "redis"

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO配置，仅在 AUDIO_DIR 含 minio:// 根目录时使用
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string

	// 日志配置
	LogLevel      string
	LogFile       string
	LogMaxSize    int // megabytes
	LogMaxBackups int
	LogMaxAge     int // days
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool accepts the forms understood by strconv.ParseBool.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s") or a bare number of milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	chunk := getEnvInt("STREAM_CHUNK_SIZE", 64*1024)
	if chunk <= 0 {
		chunk = 64 * 1024
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		AudioDirs: getEnv("AUDIO_DIR", ""),

		StreamChunkSize:   chunk,
		JSONMaxBytes:      int64(getEnvInt("JSON_MAX_BYTES", 4<<20)),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout: getEnvDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		IdleTimeout:       getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
		WriteTimeout:      getEnvDuration("WRITE_TIMEOUT", 0),

		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", ""),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),

		RateLimitEnabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitWindow:      getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		MaxRequestsPerWindow: getEnvInt("MAX_REQUESTS_PER_WINDOW", 100),
		AudioFileLimit:       getEnvInt("AUDIO_FILE_LIMIT", 10),
		RateLimitStore:       strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""), // 默认无密码
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", false),
	}
}
