package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"updatehook/internal/config"
	"updatehook/internal/logging"
	"updatehook/internal/security"
	"updatehook/internal/server"
	"updatehook/internal/update"
	"updatehook/pkg/fileutil"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook listener",
	Long: `Start the HTTP listener for GitHub push webhooks.

Configuration is merged from built-in defaults, an optional YAML file, the
environment (WEBHOOK_PORT, GITHUB_SECRET, UPDATEHOOK_*) and finally any flag
given on the command line.

Without a real secret (GITHUB_SECRET unset or "your-webhook-secret") the
listener accepts unsigned requests.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", getEnvOrDefault("UPDATEHOOK_CONFIG_FILE", ""), "Path to updatehook.yaml (searched in default locations if omitted)")
	flags.String("host", "", "Host to bind to (default all interfaces)")
	flags.IntP("port", "p", config.DefaultPort, "Port to listen on")
	flags.String("script", config.DefaultUpdateScript, "Update script run with bash")
	flags.String("command", "", "Full update command line, overrides --script")
	flags.Int("update-timeout", 0, "Kill the update after this many seconds (0 = no limit)")
	flags.String("log", config.DefaultLogFile, "Path to log file")
	flags.String("log-format", config.LogFormatLine, "Log format: line or json")
	flags.String("branch", config.DefaultBranch, "Branch whose pushes trigger an update")
	flags.Int("rate-limit", 0, "Requests per minute per client IP (0 = unlimited)")
	flags.Bool("debug", false, "Log every HTTP request")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := resolveServeConfig(cmd, os.LookupEnv)
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	logOpts := logging.Options{Format: cfg.LogFormat, Level: slog.LevelInfo}
	if debug {
		logOpts.Level = slog.LevelDebug
	}

	logger, logFile, err := logging.Open(cfg.LogFile, logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging to console only\n", err)
		logger = logging.New(nil, logOpts)
	} else {
		defer logFile.Close()
	}

	if configPath != "" {
		logger.Info("Loaded configuration", "config", configPath)
		if err := security.ValidateSecurePermissions(configPath); err != nil {
			logger.Warn("Config file permissions are too open", "error", err)
		}
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn(warning)
	}

	runner, err := update.NewScriptRunner(cfg)
	if err != nil {
		logger.Error("Failed to prepare update command", "error", err)
		return err
	}
	dispatcher := update.NewDispatcher(runner, logger)

	srv := server.NewServer(cfg, dispatcher, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// resolveServeConfig merges defaults, the YAML file, the environment and
// explicitly set flags, in that order, and validates the result.
func resolveServeConfig(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*config.Config, string, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = fileutil.FindConfig(config.FileName)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}

	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, "", err
	}

	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("script") {
		cfg.UpdateScript, _ = flags.GetString("script")
	}
	if flags.Changed("command") {
		cfg.UpdateCommand, _ = flags.GetString("command")
	}
	if flags.Changed("update-timeout") {
		cfg.UpdateTimeout, _ = flags.GetInt("update-timeout")
	}
	if flags.Changed("log") {
		cfg.LogFile, _ = flags.GetString("log")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("branch") {
		cfg.Branch, _ = flags.GetString("branch")
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit, _ = flags.GetInt("rate-limit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, configPath, nil
}
