package security

import (
	"fmt"
	"os"
)

const (
	// PermLogFile is for the listener log file.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermLogFile os.FileMode = 0640

	// PermDirectory is for directories created for the log file.
	// rwxr-x--- (0750)
	PermDirectory os.FileMode = 0750

	// PermSecretFile is for config files holding the webhook secret.
	// rw------- (0600)
	PermSecretFile os.FileMode = 0600

	// PermPublicFile is for files that can be read by anyone (systemd units).
	// rw-r--r-- (0644)
	PermPublicFile os.FileMode = 0644
)

// CreateSecureDir creates a directory (and parents) with secure permissions.
// An existing directory is left untouched.
func CreateSecureDir(path string, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}

	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("failed to create secure directory: %w", err)
	}

	// MkdirAll is subject to umask
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set directory permissions: %w", err)
	}

	return nil
}

// OpenAppendFile opens path for appending, creating it with perm if needed.
func OpenAppendFile(path string, perm os.FileMode) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for appending: %w", path, err)
	}
	return file, nil
}

// IsWorldReadable checks if a file is readable by others.
func IsWorldReadable(perm os.FileMode) bool {
	return perm&0004 != 0
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// ValidateSecurePermissions validates that a file holding secrets is not
// world-readable or world-writable.
func ValidateSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	perm := info.Mode().Perm()

	if IsWorldReadable(perm) {
		return fmt.Errorf("file %s is world-readable (%04o), which is insecure for sensitive data", path, perm)
	}

	if IsWorldWritable(perm) {
		return fmt.Errorf("file %s is world-writable (%04o), which is a serious security risk", path, perm)
	}

	return nil
}
