package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"updatehook/internal/config"
	"updatehook/internal/security"
	"updatehook/pkg/fileutil"
	"updatehook/pkg/templates"

	"github.com/spf13/cobra"
)

var unitCmd = &cobra.Command{
	Use:   "unit",
	Short: "Render a systemd unit for the listener",
	Long: `Render a systemd service unit that runs 'updatehook serve'.

Secrets belong in the environment file (GITHUB_SECRET=...), not in the unit.`,
	Example: `  updatehook unit --user fivem --group fivem > /etc/systemd/system/updatehook.service`,
	Args:    cobra.NoArgs,
	RunE:    runUnit,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long: `Write an example updatehook.yaml. With --generate-secret a fresh random
secret is filled in; otherwise the placeholder is kept and signature
verification stays disabled until a secret is set.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	flags := unitCmd.Flags()
	flags.String("user", "root", "User the listener runs as")
	flags.String("group", "root", "Group the listener runs as")
	flags.String("working-dir", "/", "Working directory")
	flags.String("binary", "", "Path to the updatehook binary (default: this executable)")
	flags.String("config-file", "/etc/updatehook/"+config.FileName, "Config file passed to serve")
	flags.String("env-file", "/etc/updatehook/env", "Optional environment file")
	flags.StringP("output", "o", "", "Write the unit to this path instead of stdout")

	addInitFlags(initCmd)
}

func addInitFlags(cmd *cobra.Command) {
	initFlags := cmd.Flags()
	initFlags.StringP("output", "o", "", "Write the config to this path instead of stdout")
	initFlags.Bool("generate-secret", false, "Fill in a freshly generated secret")
	initFlags.Bool("force", false, "Overwrite an existing file")
}

func runUnit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	binary, _ := flags.GetString("binary")
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable, pass --binary: %w", err)
		}
		binary = exe
	}

	opts := templates.SystemdServiceOptions{Binary: binary}
	opts.User, _ = flags.GetString("user")
	opts.Group, _ = flags.GetString("group")
	opts.WorkingDir, _ = flags.GetString("working-dir")
	opts.ConfigFile, _ = flags.GetString("config-file")
	opts.EnvFile, _ = flags.GetString("env-file")

	unit, err := templates.RenderSystemdService(opts)
	if err != nil {
		return err
	}

	output, _ := flags.GetString("output")
	return writeOutput(cmd, output, unit, security.PermPublicFile, true)
}

func runInit(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	defaults := config.Default()

	secret := defaults.Secret
	if generate, _ := flags.GetBool("generate-secret"); generate {
		generated, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		secret = generated
	}

	content, err := templates.Render(templates.ConfigFile, templates.TemplateData{
		"HOST":          defaults.Host,
		"PORT":          strconv.Itoa(defaults.Port),
		"SECRET":        secret,
		"BRANCH":        defaults.Branch,
		"UPDATE_SCRIPT": defaults.UpdateScript,
		"LOG_FILE":      defaults.LogFile,
	})
	if err != nil {
		return err
	}

	output, _ := flags.GetString("output")
	force, _ := flags.GetBool("force")
	return writeOutput(cmd, output, content, security.PermSecretFile, force)
}

// writeOutput prints content or writes it to path with perm.
func writeOutput(cmd *cobra.Command, path, content string, perm os.FileMode, overwrite bool) error {
	if path == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	if !overwrite && fileutil.FileExists(path) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := security.CreateSecureDir(filepath.Dir(path), security.PermDirectory); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
	return nil
}
