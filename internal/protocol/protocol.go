// Package protocol defines the types exchanged between the host launcher
// and the in-container agent. The host serializes one InternalSpec into the
// GW_INTERNAL_SPEC environment variable; the agent decodes it, checks the
// version, and provisions accordingly. Nothing here is mutated after
// construction.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the wire version of InternalSpec. The agent rejects any other
// value outright; there is no negotiation.
const Version = 1

// SpecEnv is the environment variable carrying the serialized InternalSpec
// across the container boundary.
const SpecEnv = "GW_INTERNAL_SPEC"

// ContainerSpec describes one container invocation for the engine adapter.
// It is host-side only and never crosses the wire.
type ContainerSpec struct {
	Image       string
	Hostname    string
	Mounts      []Mount
	Env         map[string]string
	Workdir     string
	User        string
	Interactive bool
	TTY         bool
	Init        bool
	Privileged  bool
	Remove      bool
	Entrypoint  []string
	Command     []string
	ExtraArgs   []string
	ExtraHosts  []string
}

// Mount is a bind mount from a host path to a container path. Options are
// extra mount options in engine syntax ("Z", "cached", ...); ReadOnly is
// folded into them at render time.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
	Options  []string
}

// InternalSpec is the host-to-agent configuration payload.
type InternalSpec struct {
	ProtocolVersion int               `json:"protocol_version"`
	Workdir         string            `json:"workdir"`
	RootDir         string            `json:"root_dir"`
	User            UserSpec          `json:"user"`
	EnvOverrides    map[string]string `json:"env_overrides"`
	PersistEnv      *PersistEnvSpec   `json:"persist_env,omitempty"`
	Terminfo        *TerminfoSpec     `json:"terminfo,omitempty"`
	Command         []string          `json:"command"`
	Shell           string            `json:"shell,omitempty"`
	ExtraShell      string            `json:"extra_shell,omitempty"`
	PrefixCmd       []string          `json:"prefix_cmd"`
	PrefixCmdQuiet  []string          `json:"prefix_cmd_quiet"`
}

// UserSpec is the host identity the agent reproduces inside the container.
type UserSpec struct {
	Name string `json:"name"`
	UID  int    `json:"uid"`
	GID  int    `json:"gid"`
	Home string `json:"home"`
}

// PersistEnvSpec configures environment snapshot restore/save around the
// user command. Path is container-visible.
type PersistEnvSpec struct {
	Path    string `json:"path"`
	Restore bool   `json:"restore"`
	Save    bool   `json:"save"`
}

// TerminfoSpec carries the caller's terminfo entry, captured host-side, so
// the agent can compile it where the image lacks the terminal's entry.
type TerminfoSpec struct {
	Term string `json:"term"`
	Data []byte `json:"data"`
}

// Encode serializes the spec for transport.
func (s *InternalSpec) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize internal spec: %w", err)
	}
	return string(raw), nil
}

// Decode parses a transport payload. Version checking is the caller's job.
func Decode(raw string) (*InternalSpec, error) {
	var s InternalSpec
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to parse internal spec: %w", err)
	}
	return &s, nil
}
