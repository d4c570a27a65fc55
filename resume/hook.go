package resume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/seqra/seqra/id"
)

// Hook registers a pending resume with the host so the workflow is
// picked back up after a reboot. Register is called before a
// reboot-inducing task hands control to the OS; Deregister once the
// resumed run reaches a terminal outcome.
type Hook interface {
	Register(ctx context.Context, wfID id.WorkflowID, checkpointPath string) error
	Deregister(ctx context.Context, wfID id.WorkflowID) error
}

// NopHook ignores registration. Used when the caller handles restart
// wiring itself or the workflow has no reboot tasks.
type NopHook struct{}

// Register implements Hook.
func (NopHook) Register(context.Context, id.WorkflowID, string) error { return nil }

// Deregister implements Hook.
func (NopHook) Deregister(context.Context, id.WorkflowID) error { return nil }

// CommandFunc renders the command line the login entry should run to
// resume the given workflow.
type CommandFunc func(wfID id.WorkflowID, checkpointPath string) string

// LoginHook registers resumes as XDG autostart desktop entries, so the
// next interactive login of the same user re-launches the engine.
type LoginHook struct {
	fs      afero.Fs
	dir     string
	command CommandFunc
}

var _ Hook = (*LoginHook)(nil)

// NewLoginHook creates a LoginHook writing entries under dir. An empty
// dir selects the user's XDG autostart directory. A nil command uses
// "seqra resume <workflow-id>".
func NewLoginHook(fsys afero.Fs, dir string, command CommandFunc) (*LoginHook, error) {
	if dir == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resume: resolve autostart dir: %w", err)
		}
		dir = filepath.Join(cfg, "autostart")
	}
	if command == nil {
		command = func(wfID id.WorkflowID, _ string) string {
			return "seqra resume " + wfID.String()
		}
	}
	return &LoginHook{fs: fsys, dir: dir, command: command}, nil
}

// Register implements Hook.
func (h *LoginHook) Register(_ context.Context, wfID id.WorkflowID, checkpointPath string) error {
	if err := h.fs.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("resume: create autostart dir %s: %w", h.dir, err)
	}
	entry := fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=Seqra resume %s
Exec=%s
X-GNOME-Autostart-enabled=true
`, wfID, h.command(wfID, checkpointPath))

	path := h.entryPath(wfID)
	if err := afero.WriteFile(h.fs, path, []byte(entry), 0o644); err != nil {
		return fmt.Errorf("resume: write autostart entry %s: %w", path, err)
	}
	return nil
}

// Deregister implements Hook. Removing an absent entry is a no-op.
func (h *LoginHook) Deregister(_ context.Context, wfID id.WorkflowID) error {
	path := h.entryPath(wfID)
	if err := h.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resume: remove autostart entry %s: %w", path, err)
	}
	return nil
}

func (h *LoginHook) entryPath(wfID id.WorkflowID) string {
	return filepath.Join(h.dir, "seqra-resume-"+wfID.String()+".desktop")
}
