package autostart

import (
	"fmt"
	"os/exec"
	"strings"
)

const taskName = "MirrorDaemon"

type WindowsAutoStarter struct{}

// taskArgs builds the schtasks arguments that start the daemon at logon.
func taskArgs(execPath string, args []string) []string {
	return []string{"/Create",
		"/TN", taskName,
		"/TR", commandLine(execPath, args),
		"/SC", "ONLOGON",
		"/F"}
}

func (w *WindowsAutoStarter) Install(execPath string, args ...string) error {
	out, err := exec.Command("schtasks", taskArgs(execPath, args)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to register task %s for %s: %w\n%s",
			taskName, strings.Join(args, " -> "), err, out)
	}

	return nil
}

func (w *WindowsAutoStarter) Uninstall() error {
	out, err := exec.Command("schtasks", "/Delete", "/TN", taskName, "/F").CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to remove task %s: %w\n%s", taskName, err, out)
	}

	return nil
}

// IsInstalled treats any query failure as not installed; schtasks exits non-zero
// for a missing task.
func (w *WindowsAutoStarter) IsInstalled() (bool, error) {
	if err := exec.Command("schtasks", "/Query", "/TN", taskName).Run(); err != nil {
		return false, nil
	}

	return true, nil
}
