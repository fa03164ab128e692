package security

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	branchPattern    = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	ownerRepoPattern = regexp.MustCompile(`^[a-zA-Z0-9-]+/[a-zA-Z0-9_.-]+$`)
)

// ValidateBranchName ensures a branch name is a plain git branch name.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if strings.HasPrefix(branch, "refs/") {
		return fmt.Errorf("branch name must not include the refs/ prefix")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidateOwnerRepo validates a GitHub "owner/repo" pair and splits it.
func ValidateOwnerRepo(ownerRepo string) (string, string, error) {
	if !ownerRepoPattern.MatchString(ownerRepo) {
		return "", "", fmt.Errorf("invalid owner/repo format: %q", ownerRepo)
	}
	parts := strings.SplitN(ownerRepo, "/", 2)
	if parts[1] == "." || parts[1] == ".." {
		return "", "", fmt.Errorf("invalid repository name: %q", parts[1])
	}
	return parts[0], parts[1], nil
}

// SanitizePath ensures a path is absolute and doesn't contain traversal attempts.
func SanitizePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	return filepath.Clean(path), nil
}
