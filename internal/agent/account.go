package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	osuser "os/user"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/giftwrap/internal/protocol"
	"github.com/majorcontext/giftwrap/internal/ui"
)

// Overridden in tests to point at a scratch rootfs.
var (
	groupPath   = "/etc/group"
	passwdPath  = "/etc/passwd"
	sudoersPath = "/etc/sudoers"
)

// setupUser makes the image answer for the caller's identity: account
// databases get entries for the target uid/gid, the home directory
// exists and is owned, and sudo grants passwordless escalation.
func setupUser(user *protocol.UserSpec) error {
	baseHome := filepath.Dir(user.Home)
	if err := os.MkdirAll(baseHome, 0755); err != nil {
		return fmt.Errorf("failed to create home base %s: %v", baseHome, err)
	}
	if err := os.Chmod(baseHome, 0755); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %v", baseHome, err)
	}

	// Standard tools first; the fallbacks below cover images without them.
	runTool("userdel", "os76")
	runTool("groupadd", "-g", strconv.Itoa(user.GID), user.Name)
	runTool("useradd",
		"-d", user.Home,
		"-m",
		"-g", strconv.Itoa(user.GID),
		"-u", strconv.Itoa(user.UID),
		user.Name)

	if err := ensureGroupEntry(user); err != nil {
		return err
	}
	if err := ensurePasswdEntry(user); err != nil {
		return err
	}
	if err := ensureHomeDir(user); err != nil {
		return err
	}
	return reconcileSudoers(user)
}

// runTool runs an account tool with inherited stdio, ignoring its exit
// status.
func runTool(name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	_ = cmd.Run()
}

// groupState reports whether contents has an entry with the target gid
// and whether any root-equivalent entry (name root or gid 0) exists.
func groupState(contents string, gid int) (hasGID, hasRoot bool) {
	for _, line := range strings.Split(contents, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, lineID := idFields(line)
		if name == "root" || lineID == 0 {
			hasRoot = true
		}
		if lineID == gid {
			hasGID = true
		}
		if hasGID && hasRoot {
			break
		}
	}
	return hasGID, hasRoot
}

// passwdState reports whether contents has an entry with the target uid
// and whether any root-equivalent entry (name root or uid 0) exists.
func passwdState(contents string, uid int) (hasUID, hasRoot bool) {
	for _, line := range strings.Split(contents, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, lineID := idFields(line)
		if name == "root" || lineID == 0 {
			hasRoot = true
		}
		if lineID == uid {
			hasUID = true
		}
		if hasUID && hasRoot {
			break
		}
	}
	return hasUID, hasRoot
}

// idFields extracts the entry name and the numeric id from field three of
// a colon-separated database line. The id is -1 when absent or malformed.
func idFields(line string) (string, int) {
	fields := strings.Split(line, ":")
	id := -1
	if len(fields) > 2 {
		if parsed, err := strconv.Atoi(fields[2]); err == nil {
			id = parsed
		}
	}
	return fields[0], id
}

func ensureGroupEntry(user *protocol.UserSpec) error {
	contents, err := readDatabase(groupPath)
	if err != nil {
		return err
	}

	hasGID, hasRoot := groupState(contents, user.GID)
	if hasGID {
		return nil
	}

	var entry strings.Builder
	if !hasRoot {
		if contents != "" && !strings.HasSuffix(contents, "\n") {
			entry.WriteString("\n")
		}
		entry.WriteString("root:x:0:\n")
	}
	fmt.Fprintf(&entry, "%s:x:%d:\n", user.Name, user.GID)

	return appendDatabase(groupPath, entry.String())
}

func ensurePasswdEntry(user *protocol.UserSpec) error {
	contents, err := readDatabase(passwdPath)
	if err != nil {
		return err
	}

	hasUID, hasRoot := passwdState(contents, user.UID)
	if hasUID {
		return nil
	}

	shell := loginShell()
	var entry strings.Builder
	if !hasRoot {
		if contents != "" && !strings.HasSuffix(contents, "\n") {
			entry.WriteString("\n")
		}
		fmt.Fprintf(&entry, "root:x:0:0:root:/root:%s\n", shell)
	}
	fmt.Fprintf(&entry, "%s:x:%d:%d:%s:%s:%s\n",
		user.Name, user.UID, user.GID, user.Name, user.Home, shell)

	return appendDatabase(passwdPath, entry.String())
}

func readDatabase(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %v", path, err)
	}
	return string(data), nil
}

func appendDatabase(path, entry string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", path, err)
	}
	defer file.Close()
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write %s: %v", path, err)
	}
	return nil
}

func loginShell() string {
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

func ensureHomeDir(user *protocol.UserSpec) error {
	if err := os.MkdirAll(user.Home, 0755); err != nil {
		return fmt.Errorf("failed to create home %s: %v", user.Home, err)
	}
	if err := os.Chmod(user.Home, 0755); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %v", user.Home, err)
	}
	if err := os.Chown(user.Home, user.UID, user.GID); err != nil {
		return fmt.Errorf("failed to chown %s: %v", user.Home, err)
	}
	return nil
}

// reconcileSudoers strips stale rules mentioning the account and appends
// a passwordless one. Images without a sudoers file are tolerated.
func reconcileSudoers(user *protocol.UserSpec) error {
	if _, err := os.Stat(sudoersPath); err != nil {
		ui.Warnf("%s not found; skipping sudoers update", sudoersPath)
		return nil
	}

	sudoName := lookupUsername(user.UID)
	if sudoName == "" {
		sudoName = user.Name
	}

	stripSudoersRules(user.Name)
	if sudoName != user.Name {
		stripSudoersRules(sudoName)
	}

	file, err := os.OpenFile(sudoersPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", sudoersPath, err)
	}
	defer file.Close()
	if _, err := fmt.Fprintf(file, "%s ALL=(ALL) NOPASSWD: ALL\n", sudoName); err != nil {
		return fmt.Errorf("failed to update %s: %v", sudoersPath, err)
	}
	return nil
}

// stripSudoersRules blanks every line mentioning name. Best effort: the
// append still runs if the rewrite fails.
func stripSudoersRules(name string) {
	if name == "" {
		return
	}
	data, err := os.ReadFile(sudoersPath)
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		if line != "" && strings.Contains(line, name) {
			lines[i] = ""
			changed = true
		}
	}
	if !changed {
		return
	}
	_ = os.WriteFile(sudoersPath, []byte(strings.Join(lines, "\n")), 0440)
}

// lookupUsername resolves uid through the passwd database, returning ""
// when no entry exists.
func lookupUsername(uid int) string {
	entry, err := osuser.LookupId(strconv.Itoa(uid))
	if err != nil {
		return ""
	}
	return entry.Username
}

// dropPrivileges switches to the target identity, group first. Both must
// succeed; a partial switch would leave the session running as root.
func dropPrivileges(uid, gid int) error {
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("failed to setgid(%d): %v", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("failed to setuid(%d): %v", uid, err)
	}
	return nil
}
