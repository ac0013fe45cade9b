package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BotWeave/BotWeave/internal/api"
	"github.com/BotWeave/BotWeave/internal/engine"
	"github.com/BotWeave/BotWeave/internal/lockfile"
	"github.com/BotWeave/BotWeave/internal/session"
	"github.com/BotWeave/BotWeave/internal/store"
	"github.com/BotWeave/BotWeave/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for BotWeave state data
	DefaultStateDir = "/var/lib/botweave"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "botweave.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Guard the state directory against concurrent instances when using
	// file-based storage
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	sessionOpts := buildSessionOptions(flags)
	engineOpts := buildEngineOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping BotWeave with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "session", len(sessionOpts), "engine", len(engineOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "redis_set", *flags.redisAddr != "")
	if err := api.Run(storeOpts, sessionOpts, engineOpts, apiOpts); err != nil {
		slog.Error("BotWeave failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("BotWeave exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	RedisAddr   string
	APIAddr     string
	SessionTTL  time.Duration
	MaxDepth    int
}

// Flags holds command line flag values
type Flags struct {
	stateDir   *string
	dbDSN      *string
	redisAddr  *string
	apiAddr    *string
	sessionTTL *time.Duration
	maxDepth   *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("BOTWEAVE_STATE_DIR"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		APIAddr:     os.Getenv("API_ADDR"),
		SessionTTL:  util.ParseDurationEnv("SESSION_TTL", session.DefaultTTL),
		MaxDepth:    util.ParseIntEnv("MAX_TRAVERSAL_DEPTH", engine.DefaultMaxTraversalDepth),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No BOTWEAVE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("BOTWEAVE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"BOTWEAVE_STATE_DIR", config.StateDir,
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"API_ADDR", config.APIAddr,
		"SESSION_TTL", config.SessionTTL,
		"MAX_TRAVERSAL_DEPTH", config.MaxDepth)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for BotWeave data (overrides $BOTWEAVE_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.DatabaseURL, "database DSN for the flow store (overrides $DATABASE_URL)"),
		redisAddr:  flag.String("redis-addr", config.RedisAddr, "Redis address for the session store (overrides $REDIS_ADDR)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sessionTTL: flag.Duration("session-ttl", config.SessionTTL, "idle session expiry (overrides $SESSION_TTL)"),
		maxDepth:   flag.Int("max-traversal-depth", config.MaxDepth, "maximum group traversals per turn (overrides $MAX_TRAVERSAL_DEPTH)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr_set", *flags.redisAddr != "",
		"apiAddr", *flags.apiAddr,
		"sessionTTL", *flags.sessionTTL,
		"maxDepth", *flags.maxDepth)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring flow store", "dsn_type", store.DetectDSNType(*flags.dbDSN), "dsn_set", true)
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildSessionOptions constructs session store configuration options
func buildSessionOptions(flags Flags) []session.Option {
	var sessionOpts []session.Option
	if *flags.sessionTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(*flags.sessionTTL))
	}
	return sessionOpts
}

// buildEngineOptions constructs engine configuration options
func buildEngineOptions(flags Flags) []engine.Option {
	var engineOpts []engine.Option
	if *flags.maxDepth > 0 {
		engineOpts = append(engineOpts, engine.WithMaxDepth(*flags.maxDepth))
	}
	return engineOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.redisAddr != "" {
		apiOpts = append(apiOpts, api.WithRedisAddr(*flags.redisAddr))
	}
	return apiOpts
}
