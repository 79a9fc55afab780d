package render

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand is replaced in tests.
var openCommand = func(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// Open hands path to the desktop's default application without waiting for
// it to exit.
func Open(path string) error {
	cmd := openCommand(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
