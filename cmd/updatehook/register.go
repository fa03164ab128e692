package main

import (
	"fmt"
	"os"

	"updatehook/internal/config"
	"updatehook/internal/logging"
	"updatehook/internal/register"
	"updatehook/pkg/fileutil"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create the push webhook on a GitHub repository",
	Long: `Create an active push webhook on a GitHub repository pointing at this
listener. The webhook secret is taken from the same configuration the
listener uses (config file, then GITHUB_SECRET). Nothing is changed when a
webhook with the same URL already exists.

The GitHub token needs admin:repo_hook scope. It is read from --token,
GITHUB_TOKEN or GH_TOKEN.`,
	Example: `  updatehook register --repo acme/game-server --url https://hooks.example.com/`,
	RunE:    runRegister,
}

func init() {
	flags := registerCmd.Flags()
	flags.StringP("config", "c", getEnvOrDefault("UPDATEHOOK_CONFIG_FILE", ""), "Path to updatehook.yaml")
	flags.String("repo", "", "Repository in owner/repo form (required)")
	flags.String("url", "", "Public payload URL of the listener (required)")
	flags.String("token", "", "GitHub token (default $GITHUB_TOKEN or $GH_TOKEN)")
	flags.String("api-url", "", "GitHub API base URL for GitHub Enterprise")
	flags.Bool("insecure-ssl", false, "Let GitHub skip TLS verification when delivering")

	_ = registerCmd.MarkFlagRequired("repo")
	_ = registerCmd.MarkFlagRequired("url")
}

func runRegister(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = fileutil.FindConfig(config.FileName)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if !cfg.SignatureRequired() {
		return fmt.Errorf("no webhook secret configured; set GITHUB_SECRET or 'secret' in %s (generate one with 'updatehook secret')", config.FileName)
	}

	token, _ := flags.GetString("token")
	if token == "" {
		token = getEnvOrDefault("GITHUB_TOKEN", os.Getenv("GH_TOKEN"))
	}
	apiURL, _ := flags.GetString("api-url")

	client, err := register.NewClient(cmd.Context(), token, apiURL)
	if err != nil {
		return err
	}

	repo, _ := flags.GetString("repo")
	url, _ := flags.GetString("url")
	insecure, _ := flags.GetBool("insecure-ssl")

	logger := logging.New(nil, logging.Options{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})

	result, err := register.EnsureHook(cmd.Context(), client, register.Options{
		OwnerRepo:   repo,
		URL:         url,
		Secret:      cfg.Secret,
		InsecureSSL: insecure,
	}, logger)
	if err != nil {
		return err
	}

	if result.Created {
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook %d created for %s\n", result.Hook.GetID(), repo)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Webhook %d already present for %s\n", result.Hook.GetID(), repo)
	}
	return nil
}
