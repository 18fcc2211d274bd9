package storage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Quarantine moves an unreadable state file aside so a fresh one can be
// started. It returns the new location of the old file.
func Quarantine(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("nothing to quarantine at %s", path)
		}
		return "", err
	}

	moved := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405.000"))
	if err := os.Rename(path, moved); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}
	return moved, nil
}

func logQuarantine(path, moved string, cause error) {
	log.Warn().
		Err(cause).
		Str("path", path).
		Str("moved_to", moved).
		Msg("state file unreadable, starting fresh")
}
