package tunnel

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateSeed returns the persisted transport seed, generating
// and persisting a fresh random one on first run. The seed derives the
// server's stable public address, so it gets restrictive permissions.
func LoadOrCreateSeed(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		seed := strings.TrimSpace(string(data))
		if seed != "" {
			return seed, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	seed := hex.EncodeToString(buf)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create seed dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(seed+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist seed: %w", err)
	}
	return seed, nil
}
