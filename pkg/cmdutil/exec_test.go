package cmdutil

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable bash script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "update-hook.sh")
	if err := os.WriteFile(path, []byte("#!/bin/bash\n"+body), 0755); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestRun_UpdateScript(t *testing.T) {
	script := writeScript(t, "echo pulled\necho 'warning: detached HEAD' >&2\n")

	result, err := Run(context.Background(), ExecOptions{}, []string{"bash", script})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := string(result.Stdout); got != "pulled\n" {
		t.Errorf("Stdout = %q, want %q", got, "pulled\n")
	}
	if got := string(result.Stderr); got != "warning: detached HEAD\n" {
		t.Errorf("Stderr = %q, want the warning", got)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Duration <= 0 {
		t.Error("Duration was not recorded")
	}
}

func TestRun_FailingScriptKeepsOutput(t *testing.T) {
	script := writeScript(t, "echo partial\necho 'fatal: not a git repository' >&2\nexit 128\n")

	result, err := Run(context.Background(), ExecOptions{}, []string{"bash", script})
	if err == nil {
		t.Fatal("Run() should return error for non-zero exit")
	}
	if result == nil {
		t.Fatal("Run() should return a result alongside the error")
	}
	if result.ExitCode != 128 {
		t.Errorf("ExitCode = %d, want 128", result.ExitCode)
	}
	if string(result.Stdout) != "partial\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "partial\n")
	}
	if !strings.Contains(string(result.Stderr), "not a git repository") {
		t.Errorf("Stderr = %q, want the git error", result.Stderr)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		opts    ExecOptions
		cmd     []string
		wantErr string
	}{
		{
			"empty command",
			func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			ExecOptions{},
			nil,
			"empty command",
		},
		{
			"missing binary",
			func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			ExecOptions{},
			[]string{"/nonexistent/update-hook"},
			"command failed",
		},
		{
			"timeout",
			func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			ExecOptions{Timeout: 100 * time.Millisecond},
			[]string{"sleep", "5"},
			"timed out after 100ms",
		},
		{
			"cancelled",
			func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(100*time.Millisecond, cancel)
				return ctx, cancel
			},
			ExecOptions{},
			[]string{"sleep", "5"},
			"cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			_, err := Run(ctx, tt.opts, tt.cmd)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Run() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	result, err := Run(context.Background(), ExecOptions{Dir: dir}, []string{"pwd"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(string(result.Stdout), dir) {
		t.Errorf("pwd = %q, want it to contain %q", result.Stdout, dir)
	}
}

func TestParseCommandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"default update command", "bash /opt/fivem/scripts/update-hook.sh", []string{"bash", "/opt/fivem/scripts/update-hook.sh"}, false},
		{"quoted path with flag", `bash -e "/opt/my scripts/update.sh"`, []string{"bash", "-e", "/opt/my scripts/update.sh"}, false},
		{"sudo wrapper", `sudo -u fivem '/srv/update hook.sh'`, []string{"sudo", "-u", "fivem", "/srv/update hook.sh"}, false},
		{"metacharacters stay literal", `bash update.sh ';' rm`, []string{"bash", "update.sh", ";", "rm"}, false},
		{"unterminated quote", "bash 'update.sh", nil, true},
		{"empty string", "", nil, true},
		{"whitespace only", "   ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommandString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommandString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		input []string
		want  string
	}{
		{[]string{"bash", "/opt/fivem/scripts/update-hook.sh"}, "bash /opt/fivem/scripts/update-hook.sh"},
		{[]string{"bash", "-e", "/opt/my scripts/update.sh"}, ""}, // quoting style is shellquote's
		{nil, "<empty command>"},
	}

	for _, tt := range tests {
		got := FormatCommand(tt.input)
		if tt.want != "" && got != tt.want {
			t.Errorf("FormatCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if len(tt.input) == 0 {
			continue
		}
		parsed, err := ParseCommandString(got)
		if err != nil || !reflect.DeepEqual(parsed, tt.input) {
			t.Errorf("ParseCommandString(FormatCommand(%q)) = %q, %v", tt.input, parsed, err)
		}
	}
}

func TestSanitizeOutput(t *testing.T) {
	const secret = "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS2uW5yA7bD0fG3hK6"

	tests := []struct {
		name    string
		output  string
		secrets []string
		want    string
	}{
		{"secret echoed by script", "GITHUB_SECRET=" + secret + "\n", []string{secret}, "GITHUB_SECRET=***REDACTED***\n"},
		{"repeated secret", secret + " " + secret, []string{secret}, "***REDACTED*** ***REDACTED***"},
		{"no secrets configured", "Already up to date.", nil, "Already up to date."},
		{"empty secret ignored", "Already up to date.", []string{""}, "Already up to date."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(SanitizeOutput([]byte(tt.output), tt.secrets)); got != tt.want {
				t.Errorf("SanitizeOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}
