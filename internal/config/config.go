package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

type StorageDriver string

const (
	StorageFile     StorageDriver = "file"
	StorageMemory   StorageDriver = "memory"
	StorageRedis    StorageDriver = "redis"
	StoragePostgres StorageDriver = "postgres"
)

type Config struct {
	API      APIConfig
	Mode     Mode
	Storage  StorageConfig
	UI       UIConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Stub     StubConfig
}

type APIConfig struct {
	BaseURL string
}

type StorageConfig struct {
	Driver StorageDriver
	Path   string
	// Profile namespaces the session in shared redis/postgres storage.
	Profile string
}

type UIConfig struct {
	PollInterval time.Duration
	ToastTTL     time.Duration
	ExportDir    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// DSN builds the connection string for pgx.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type StubConfig struct {
	Host string
	Port int
	// TokenSecret signs access tokens. Empty means a random per-process key.
	TokenSecret   string
	TokenTTL      time.Duration
	PayAfterPolls int
	LoginLimit    int
	LoginWindow   time.Duration
	// Redis backs idempotency keys and login rate limits when set.
	Redis bool
	// AdminEmail and AdminPassword seed the stub's admin account.
	AdminEmail    string
	AdminPassword string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	apiURL := os.Getenv("TICKSY_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid TICKSY_API_URL %q", op, apiURL)
	}

	mode := Mode(os.Getenv("TICKSY_MODE"))
	switch mode {
	case "":
		mode = ModeDevelopment
	case ModeDevelopment, ModeProduction:
	default:
		return nil, fmt.Errorf("%s: invalid TICKSY_MODE %q", op, mode)
	}

	driver := StorageDriver(os.Getenv("TICKSY_STORAGE"))
	switch driver {
	case "":
		driver = StorageFile
	case StorageFile, StorageMemory, StorageRedis, StoragePostgres:
	default:
		return nil, fmt.Errorf("%s: invalid TICKSY_STORAGE %q", op, driver)
	}

	storagePath := os.Getenv("TICKSY_STORAGE_PATH")
	if storagePath == "" {
		storagePath = defaultStoragePath()
	}

	profile := os.Getenv("TICKSY_PROFILE")
	if profile == "" {
		profile = "default"
	}

	pollInterval, err := durationEnv("TICKSY_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	toastTTL, err := durationEnv("TICKSY_TOAST_TTL", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exportDir := os.Getenv("TICKSY_EXPORT_DIR")
	if exportDir == "" {
		exportDir = "."
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6380"
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	// Postgres credentials are only mandatory when the session lives there.
	if driver == StoragePostgres {
		if postgresCfg.User == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}
		if postgresCfg.Name == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}
	}

	stubHost := os.Getenv("STUB_HOST")
	if stubHost == "" {
		stubHost = "localhost"
	}

	stubPort, err := intEnv("STUB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokenTTL, err := durationEnv("STUB_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payAfter, err := intEnv("STUB_PAY_AFTER_POLLS", 2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payAfter < 0 {
		return nil, fmt.Errorf("%s: invalid STUB_PAY_AFTER_POLLS: must not be negative", op)
	}

	loginLimit, err := intEnv("STUB_LOGIN_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	loginWindow, err := durationEnv("STUB_LOGIN_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stubRedis, err := boolEnv("STUB_REDIS", false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	adminEmail := os.Getenv("STUB_ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@ticksy.local"
	}

	adminPassword := os.Getenv("STUB_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123"
	}

	return &Config{
		API:  APIConfig{BaseURL: apiURL},
		Mode: mode,
		Storage: StorageConfig{
			Driver:  driver,
			Path:    storagePath,
			Profile: profile,
		},
		UI: UIConfig{
			PollInterval: pollInterval,
			ToastTTL:     toastTTL,
			ExportDir:    exportDir,
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Postgres: postgresCfg,
		Stub: StubConfig{
			Host:          stubHost,
			Port:          stubPort,
			TokenSecret:   os.Getenv("STUB_TOKEN_SECRET"),
			TokenTTL:      tokenTTL,
			PayAfterPolls: payAfter,
			LoginLimit:    loginLimit,
			LoginWindow:   loginWindow,
			Redis:         stubRedis,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	}, nil
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}

	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}

	return d, nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ticksy-session.json"
	}

	return filepath.Join(dir, "ticksy", "session.json")
}
