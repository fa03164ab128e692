package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Template names
const (
	SystemdService = "systemd-service"
	ConfigFile     = "config"
)

//go:embed files/*.template
var builtin embed.FS

// TemplateData holds variables for template rendering.
type TemplateData map[string]string

// GetTemplatePaths returns the override search paths for a template
func GetTemplatePaths(templateName string) []string {
	filename := templateName + ".template"
	return []string{
		filepath.Join(".", "templates", filename),
		filepath.Join(".", "config", "templates", filename),
		filepath.Join("/etc", "updatehook", "templates", filename),
	}
}

// GetTemplate returns the raw template content by name.
// Overrides are looked up on the filesystem in the following order before
// falling back to the built-in copy:
// 1. ./templates/<name>.template
// 2. ./config/templates/<name>.template
// 3. /etc/updatehook/templates/<name>.template
func GetTemplate(name string) (string, error) {
	if !ValidateTemplate(name) {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	for _, path := range GetTemplatePaths(name) {
		if content, err := os.ReadFile(path); err == nil {
			return string(content), nil
		}
	}

	content, err := builtin.ReadFile("files/" + name + ".template")
	if err != nil {
		return "", fmt.Errorf("built-in template %s missing: %w", name, err)
	}
	return string(content), nil
}

// Render renders a template with the given data.
// Uses {{PLACEHOLDER}} syntax for variable substitution. Placeholders left
// unfilled are reported as an error.
//
// Example:
//
//	data := TemplateData{
//	    "USER":  "fivem",
//	    "GROUP": "fivem",
//	}
//	rendered, err := Render(SystemdService, data)
func Render(templateName string, data TemplateData) (string, error) {
	tmplContent, err := GetTemplate(templateName)
	if err != nil {
		return "", err
	}

	rendered := tmplContent
	for key, value := range data {
		placeholder := fmt.Sprintf("{{%s}}", key)
		rendered = strings.ReplaceAll(rendered, placeholder, value)
	}

	if missing := unfilledPlaceholders(rendered); len(missing) > 0 {
		return "", fmt.Errorf("template %s: missing values for %s", templateName, strings.Join(missing, ", "))
	}

	return rendered, nil
}

func unfilledPlaceholders(s string) []string {
	seen := map[string]bool{}
	for {
		start := strings.Index(s, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(s[start:], "}}")
		if end < 0 {
			break
		}
		seen[s[start+2:start+end]] = true
		s = s[start+end+2:]
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemdServiceOptions are the values substituted into the unit file.
type SystemdServiceOptions struct {
	User       string
	Group      string
	WorkingDir string
	Binary     string
	ConfigFile string
	EnvFile    string
}

// RenderSystemdService renders the systemd unit for `updatehook serve`.
func RenderSystemdService(opts SystemdServiceOptions) (string, error) {
	return Render(SystemdService, TemplateData{
		"USER":        opts.User,
		"GROUP":       opts.Group,
		"WORKING_DIR": opts.WorkingDir,
		"BINARY":      opts.Binary,
		"CONFIG_FILE": opts.ConfigFile,
		"ENV_FILE":    opts.EnvFile,
	})
}

// ValidateTemplate checks if a template name is valid.
func ValidateTemplate(name string) bool {
	validNames := map[string]bool{
		SystemdService: true,
		ConfigFile:     true,
	}
	return validNames[name]
}
