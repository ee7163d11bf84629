// Package config loads giftwrap configuration: the per-project key/value
// file that anchors the build root, plus user-level defaults from the
// global YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// configNames are the accepted per-project file names, in preference order.
// The directory holding the file becomes the build root.
var configNames = [2]string{".giftwrap", "giftwrap"}

const (
	envSetPrefix = "GW_USER_OPT_SET_"
	envAddPrefix = "GW_USER_OPT_ADD_"
	envDelPrefix = "GW_USER_OPT_DEL_"
)

// Config is the parsed project configuration plus build-root discovery
// metadata. Params holds every key after env overrides were applied.
type Config struct {
	// RootDir is the directory containing the config file (build root).
	RootDir string
	// Path is the full path to the config file that was loaded.
	Path string
	// Params is the raw parameter map after applying env overrides.
	Params map[string][]string
	// UUID scopes GW_USER_OPT_* overrides, dashes stripped. Empty when the
	// config declares none.
	UUID string
}

// Load discovers the nearest config file at or above startDir, parses it,
// and applies environment overrides.
func Load(startDir string) (*Config, error) {
	rootDir, path, err := discover(startDir)
	if err != nil {
		return nil, err
	}
	params, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	uuid := ""
	if vals := params["uuid"]; len(vals) > 0 {
		uuid = strings.ReplaceAll(vals[0], "-", "")
	}

	if err := applyEnvOverrides(params, uuid); err != nil {
		return nil, err
	}

	if _, ok := params["gw_container"]; !ok {
		return nil, fmt.Errorf("gw_container must be specified in %s", path)
	}
	_, hasPrefix := params["prefix_cmd"]
	_, hasQuiet := params["prefix_cmd_quiet"]
	if hasPrefix && hasQuiet {
		return nil, fmt.Errorf("must specify at most one of prefix_cmd and prefix_cmd_quiet")
	}

	return &Config{RootDir: rootDir, Path: path, Params: params, UUID: uuid}, nil
}

// First returns the first value of key.
func (c *Config) First(key string) (string, bool) {
	vals, ok := c.Params[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns all values of key.
func (c *Config) Values(key string) []string {
	return c.Params[key]
}

// Has reports whether key appears in the config, with or without values.
func (c *Config) Has(key string) bool {
	_, ok := c.Params[key]
	return ok
}

// discover walks from startDir (symlinks resolved) up to but not including
// the filesystem root, returning the first directory holding a config file.
func discover(startDir string) (string, string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve cwd: %v", err)
	}
	dir, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve cwd: %v", err)
	}

	for dir != string(filepath.Separator) {
		for _, cfgName := range configNames {
			candidate := filepath.Join(dir, cfgName)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return dir, candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", fmt.Errorf("never found a config file")
}

// parseFile reads the key/value grammar: one key per line followed by
// shell-quoted values; later occurrences of a key replace earlier ones.
func parseFile(path string) (map[string][]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", path, err)
	}

	params := make(map[string][]string)
	for idx, rawLine := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts, err := shlex.Split(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config line %d: %v", idx+1, err)
		}
		if len(parts) == 0 {
			continue
		}
		params[parts[0]] = parts[1:]
	}
	return params, nil
}

type envOp int

const (
	envOpSet envOp = iota
	envOpAdd
	envOpDel
)

// applyEnvOverrides folds GW_USER_OPT_{SET,ADD,DEL}_<key> environment
// variables into params. A UUID_<uuid>_ infix scopes an override to the
// config whose declared uuid matches; scoped overrides never apply when the
// config has no uuid.
func applyEnvOverrides(params map[string][]string, uuid string) error {
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		op, opt, ok := matchEnvOpt(key, uuid)
		if !ok {
			continue
		}
		switch op {
		case envOpDel:
			delete(params, opt)
		case envOpAdd:
			parts, err := shlex.Split(value)
			if err != nil {
				return fmt.Errorf("failed to parse env override %s: %v", key, err)
			}
			params[opt] = append(params[opt], parts...)
		case envOpSet:
			parts, err := shlex.Split(value)
			if err != nil {
				return fmt.Errorf("failed to parse env override %s: %v", key, err)
			}
			params[opt] = parts
		}
	}
	return nil
}

func matchEnvOpt(key, uuid string) (envOp, string, bool) {
	var op envOp
	var rest string
	switch {
	case strings.HasPrefix(key, envSetPrefix):
		op, rest = envOpSet, key[len(envSetPrefix):]
	case strings.HasPrefix(key, envAddPrefix):
		op, rest = envOpAdd, key[len(envAddPrefix):]
	case strings.HasPrefix(key, envDelPrefix):
		op, rest = envOpDel, key[len(envDelPrefix):]
	default:
		return 0, "", false
	}

	if !strings.HasPrefix(rest, "UUID_") {
		return op, rest, true
	}
	if uuid == "" {
		return 0, "", false
	}
	expected := "UUID_" + uuid + "_"
	if !strings.HasPrefix(rest, expected) {
		return 0, "", false
	}
	return op, rest[len(expected):], true
}
