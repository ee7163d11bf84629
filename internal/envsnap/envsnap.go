// Package envsnap persists environment snapshots as JSON maps. The agent
// writes one after the user command when persistence is enabled and restores
// it as the base environment on the next launch.
package envsnap

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Save writes the current process environment to path, excluding SHLVL so a
// restored shell does not inherit a stale nesting depth.
func Save(path string) error {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "SHLVL" {
			continue
		}
		env[key] = value
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize environment: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write environment snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment snapshot %s: %w", path, err)
	}
	var env map[string]string
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment snapshot %s: %w", path, err)
	}
	return env, nil
}
