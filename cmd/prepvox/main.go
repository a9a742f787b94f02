package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/prepvox/PrepVox/internal/api"
	"github.com/prepvox/PrepVox/internal/auth"
	"github.com/prepvox/PrepVox/internal/genai"
	"github.com/prepvox/PrepVox/internal/interview"
	"github.com/prepvox/PrepVox/internal/lockfile"
	"github.com/prepvox/PrepVox/internal/store"
	"github.com/prepvox/PrepVox/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for PrepVox state data
	DefaultStateDir = "/var/lib/prepvox"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "prepvox.db"
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

	// Hold the state directory lock for the lifetime of the process
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build modules
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	gaClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	authSvc, err := auth.NewService(st, auth.WithSecret(*flags.jwtSecret))
	if err != nil {
		slog.Error("Failed to initialize auth service", "error", err)
		os.Exit(1)
	}

	targets := interview.Targets{
		GenerateWorkflowID:     *flags.workflowID,
		InterviewerAssistantID: *flags.assistantID,
	}

	server := api.NewServer(st, authSvc, gaClient, targets, buildAPIOptions(flags)...)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping PrepVox with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("PrepVox failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PrepVox exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	JWTSecret   string
	SessionURL  string
	SessionKey  string
	WorkflowID  string
	AssistantID string
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	jwtSecret   *string
	sessionURL  *string
	sessionKey  *string
	workflowID  *string
	assistantID *string
}

// initializeLogger sets up structured logging; debug level is opt-in via
// $PREPVOX_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PREPVOX_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		StateDir:    os.Getenv("PREPVOX_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		JWTSecret:   os.Getenv("PREPVOX_JWT_SECRET"),
		SessionURL:  os.Getenv("SESSION_SERVICE_URL"),
		SessionKey:  os.Getenv("SESSION_SERVICE_KEY"),
		WorkflowID:  os.Getenv("GENERATE_WORKFLOW_ID"),
		AssistantID: os.Getenv("INTERVIEWER_ASSISTANT_ID"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No PREPVOX_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"PREPVOX_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"JWT_SECRET_SET", config.JWTSecret != "",
		"SESSION_SERVICE_URL", config.SessionURL,
		"GENERATE_WORKFLOW_ID", config.WorkflowID,
		"INTERVIEWER_ASSISTANT_ID", config.AssistantID)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for PrepVox data (overrides $PREPVOX_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		jwtSecret:   flag.String("jwt-secret", config.JWTSecret, "session token signing secret (overrides $PREPVOX_JWT_SECRET)"),
		sessionURL:  flag.String("session-url", config.SessionURL, "voice session service websocket URL (overrides $SESSION_SERVICE_URL)"),
		sessionKey:  flag.String("session-key", config.SessionKey, "voice session service API key (overrides $SESSION_SERVICE_KEY)"),
		workflowID:  flag.String("workflow-id", config.WorkflowID, "session target for question-generating calls (overrides $GENERATE_WORKFLOW_ID)"),
		assistantID: flag.String("assistant-id", config.AssistantID, "session target for interviewer calls (overrides $INTERVIEWER_ASSISTANT_ID)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"jwtSecretSet", *flags.jwtSecret != "",
		"sessionURL", *flags.sessionURL,
		"workflowID", *flags.workflowID,
		"assistantID", *flags.assistantID)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// isPostgresDSN reports whether a DSN targets PostgreSQL.
func isPostgresDSN(dsn string) bool {
	return strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "postgresql://") || strings.Contains(dsn, "host=")
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !isPostgresDSN(*flags.dbDSN) {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore selects and constructs the store backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if isPostgresDSN(*flags.dbDSN) {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sessionURL != "" {
		apiOpts = append(apiOpts, api.WithSessionService(*flags.sessionURL, *flags.sessionKey))
	}
	return apiOpts
}
