// Package cache keeps on-disk caches for fetched pages and LLM entity
// responses. Entries are keyed by sha256 and never evicted implicitly;
// callers purge by age at startup.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
)

// Dir is a cache directory with optional restricted permissions
// (0700 directories, 0600 files).
type Dir struct {
	Path        string
	StrictPerms bool
}

func (d Dir) ensure() error {
	if d.Path == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if d.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(d.Path, perm); err != nil {
		return err
	}
	if d.StrictPerms {
		if info, err := os.Stat(d.Path); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(d.Path, 0o700)
		}
	}
	return nil
}

func (d Dir) fileMode() os.FileMode {
	if d.StrictPerms {
		return 0o600
	}
	return 0o644
}

func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
