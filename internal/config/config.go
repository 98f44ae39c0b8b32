package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	SRI      SRIConfig      `json:"sri"`
	Browser  BrowserConfig  `json:"browser"`
	Storage  StorageConfig  `json:"storage"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration for the optional session repository
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	SessionTTL   time.Duration `json:"session_ttl"`
}

// SRIConfig holds portal URLs, timeouts and pacing for the retrieval pipeline
type SRIConfig struct {
	LoginURL        string        `json:"login_url"`
	RecibidosURL    string        `json:"recibidos_url"`
	EmitidosURL     string        `json:"emitidos_url"`
	NavTimeout      time.Duration `json:"nav_timeout"`
	DownloadTimeout time.Duration `json:"download_timeout"`
	CaptchaWait     time.Duration `json:"captcha_wait"`
	ItemPause       time.Duration `json:"item_pause"`
	BlockPause      time.Duration `json:"block_pause"`
	BlockEvery      int           `json:"block_every"`
	FetchWorkers    int           `json:"fetch_workers"`
}

// BrowserConfig holds browser automation configuration. UserDataDir is the
// writable profile/cache location injected at process start; deployment
// targets with read-only roots must set it explicitly.
type BrowserConfig struct {
	Headless    bool          `json:"headless"`
	UserDataDir string        `json:"user_data_dir"`
	PageTimeout time.Duration `json:"page_timeout"`
	WindowW     int           `json:"window_w"`
	WindowH     int           `json:"window_h"`
}

// StorageConfig holds on-disk locations for downloads, sessions and history
type StorageConfig struct {
	DownloadDir string `json:"download_dir"`
	SessionDir  string `json:"session_dir"`
	HistoryFile string `json:"history_file"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstSize         int `json:"burst_size"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 600),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
			SessionTTL:   time.Duration(getEnvAsInt("REDIS_SESSION_TTL", 86400)) * time.Second,
		},
		SRI: SRIConfig{
			LoginURL:        getEnv("SRI_LOGIN_URL", "https://srienlinea.sri.gob.ec/sri-en-linea/inicio/NAT"),
			RecibidosURL:    getEnv("SRI_RECIBIDOS_URL", "https://srienlinea.sri.gob.ec/comprobantes-electronicos-internet/pages/consultas/recibidos/comprobantesRecibidos.jsf"),
			EmitidosURL:     getEnv("SRI_EMITIDOS_URL", "https://srienlinea.sri.gob.ec/comprobantes-electronicos-internet/pages/consultas/emitidos/comprobantesEmitidos.jsf"),
			NavTimeout:      time.Duration(getEnvAsInt("SRI_NAV_TIMEOUT", 60)) * time.Second,
			DownloadTimeout: time.Duration(getEnvAsInt("SRI_DOWNLOAD_TIMEOUT", 90)) * time.Second,
			CaptchaWait:     time.Duration(getEnvAsInt("SRI_CAPTCHA_WAIT", 60)) * time.Second,
			ItemPause:       time.Duration(getEnvAsInt("SRI_ITEM_PAUSE_MS", 200)) * time.Millisecond,
			BlockPause:      time.Duration(getEnvAsInt("SRI_BLOCK_PAUSE_MS", 2000)) * time.Millisecond,
			BlockEvery:      getEnvAsInt("SRI_BLOCK_EVERY", 20),
			FetchWorkers:    getEnvAsInt("SRI_FETCH_WORKERS", 1),
		},
		Browser: BrowserConfig{
			Headless:    getEnvAsBool("BROWSER_HEADLESS", true),
			UserDataDir: getEnv("BROWSER_USER_DATA_DIR", ""),
			PageTimeout: time.Duration(getEnvAsInt("PAGE_TIMEOUT", 45)) * time.Second,
			WindowW:     getEnvAsInt("BROWSER_WINDOW_W", 1920),
			WindowH:     getEnvAsInt("BROWSER_WINDOW_H", 1080),
		},
		Storage: StorageConfig{
			DownloadDir: getEnv("DOWNLOAD_DIR", "descargas"),
			SessionDir:  getEnv("SESSION_DIR", "sesiones"),
			HistoryFile: getEnv("HISTORY_FILE", filepath.Join("descargas", "historial_descargas.json")),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 30),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 5),
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
