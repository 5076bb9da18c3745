// Package trash moves files to the operating-system trash.
//
// The pipeline core never imports this package - it receives the move
// operation as an injected function. A failed move is reported to the
// caller and the file stays in place; there is deliberately no
// fallback to permanent deletion.
package trash

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Move moves a file to the platform trash. A path that no longer
// exists counts as success.
func Move(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return moveDarwin(path)
	case "linux":
		return moveLinux(path)
	case "windows":
		return moveWindows(path)
	default:
		return fmt.Errorf("trash not supported on %s", runtime.GOOS)
	}
}

// moveDarwin asks Finder to delete the file, preserving "Put Back".
func moveDarwin(path string) error {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)

	cmd := exec.Command("osascript", "-e",
		`tell application "Finder" to delete POSIX file "`+escaped+`"`)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// moveLinux tries gio and trash-put, then falls back to writing the
// freedesktop.org trash layout directly.
func moveLinux(path string) error {
	if err := exec.Command("gio", "trash", path).Run(); err == nil {
		return nil
	}
	if err := exec.Command("trash-put", path).Run(); err == nil {
		return nil
	}
	return moveFreedesktop(path)
}

// moveFreedesktop implements the FreeDesktop.org trash specification:
// the file moves under ~/.local/share/Trash/files and a .trashinfo
// record is written alongside.
func moveFreedesktop(path string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	filesDir := filepath.Join(home, ".local", "share", "Trash", "files")
	infoDir := filepath.Join(home, ".local", "share", "Trash", "info")
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return err
	}

	// Pick a trash name that does not collide with earlier deletions.
	base := filepath.Base(path)
	name := base
	for n := 1; ; n++ {
		if _, err := os.Lstat(filepath.Join(filesDir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s.%d", base, n)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		abs, time.Now().Format("2006-01-02T15:04:05"))
	infoPath := filepath.Join(infoDir, name+".trashinfo")
	if err := os.WriteFile(infoPath, []byte(info), 0o600); err != nil {
		return err
	}

	if err := os.Rename(path, filepath.Join(filesDir, name)); err != nil {
		_ = os.Remove(infoPath)
		return err
	}
	return nil
}

// moveWindows sends the file to the Recycle Bin via the
// Shell.Application COM object.
func moveWindows(path string) error {
	escaped := strings.ReplaceAll(path, `'`, `''`)
	script := fmt.Sprintf(`
$shell = New-Object -ComObject Shell.Application
$item = $shell.NameSpace(0).ParseName('%s')
if (-not $item) { exit 1 }
$item.InvokeVerb('delete')
`, escaped)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("recycle bin move failed: %w", err)
	}
	return nil
}
