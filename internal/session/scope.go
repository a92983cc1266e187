package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Identify returns the id of the current session, creating one when the
// scope file is missing or unreadable. The scope file lives in the OS temp
// dir by default, so it disappears when the user's session ends.
func Identify(scopeFile string) (id string, created bool, err error) {
	if data, err := os.ReadFile(scopeFile); err == nil {
		if existing := strings.TrimSpace(string(data)); uuid.Validate(existing) == nil {
			return existing, false, nil
		}
	}

	id = uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(scopeFile), 0755); err != nil {
		return "", false, fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(scopeFile, []byte(id+"\n"), 0600); err != nil {
		return "", false, fmt.Errorf("failed to write session file: %w", err)
	}
	return id, true, nil
}

// Forget removes the scope file so the next start opens a new session
func Forget(scopeFile string) error {
	if err := os.Remove(scopeFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
