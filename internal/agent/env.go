package agent

import (
	"os"
	"sort"
	"strings"

	"github.com/majorcontext/giftwrap/internal/envsnap"
	"github.com/majorcontext/giftwrap/internal/protocol"
	"github.com/majorcontext/giftwrap/internal/ui"
)

// baseEnv picks the session's starting environment: the restored snapshot
// when the spec requests it and one exists, otherwise the ambient
// environment. A corrupt snapshot degrades to ambient with a warning.
func baseEnv(spec *protocol.InternalSpec) map[string]string {
	if persist := spec.PersistEnv; persist != nil && persist.Restore {
		if _, err := os.Stat(persist.Path); err == nil {
			restored, err := envsnap.Load(persist.Path)
			if err == nil {
				return restored
			}
			ui.Warnf("failed to restore environment from %s: %v", persist.Path, err)
		}
	}
	return environMap()
}

func environMap() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	return env
}

// envList renders env as KEY=value pairs in sorted key order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	list := make([]string, 0, len(env))
	for _, key := range keys {
		list = append(list, key+"="+env[key])
	}
	return list
}
