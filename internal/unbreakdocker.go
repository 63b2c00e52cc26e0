package internal

import (
	"os"
	"os/exec"
)

// UnbreakDocker attaches the current dev container to the default bridge
// network so container-backed tests (valkey) are reachable. Outside a
// container it does nothing.
func UnbreakDocker() {
	// XXX(Xe): This is bad code. Do not do this.
	if _, err := os.Stat("/.dockerenv"); err != nil {
		return
	}

	if hostname, err := os.Hostname(); err == nil {
		exec.Command("docker", "network", "connect", "bridge", hostname).Run()
	}
}
