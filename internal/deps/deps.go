package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Name      string
	Installed bool
	Path      string
	Version   string
}

// check looks up name on PATH and reads the first line printed by
// name versionArg.
func check(name, versionArg string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Name: name}
	}

	status := Status{Name: name, Installed: true, Path: path}
	output, err := exec.Command(path, versionArg).Output()
	if err == nil {
		lines := strings.Split(strings.TrimSpace(string(output)), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}
	return status
}

// CheckPwRecord checks for the pw-record capture tool used by the pipewire
// audio backend.
func CheckPwRecord() Status {
	return check("pw-record", "--version")
}

// CheckPwCli checks for pw-cli, used to see whether PipeWire is running.
func CheckPwCli() Status {
	return check("pw-cli", "--version")
}

// CaptureTools returns the status of every external capture tool.
func CaptureTools() []Status {
	return []Status{CheckPwRecord(), CheckPwCli()}
}
