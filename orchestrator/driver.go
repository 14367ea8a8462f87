package orchestrator

import (
	"bytes"
	"fmt"
	"os/exec"
)

// DeploymentCommandFailed is returned when the container runtime rejects an
// up or down invocation. Stdout/Stderr are captured for the operator.
type DeploymentCommandFailed struct {
	Args   []string
	Stdout string
	Stderr string
}

func (e *DeploymentCommandFailed) Error() string {
	return fmt.Sprintf("docker %v failed: %s", e.Args, e.Stderr)
}

// Driver invokes the container runtime against one compose file.
type Driver struct {
	composePath string
}

// NewDriver builds a Driver targeting the compose file at composePath.
func NewDriver(composePath string) *Driver {
	return &Driver{composePath: composePath}
}

// Up brings the fleet up in detached mode.
func (d *Driver) Up() error {
	return d.run("up", "-d")
}

// Down tears the fleet down.
func (d *Driver) Down() error {
	return d.run("down")
}

func (d *Driver) run(args ...string) error {
	fullArgs := append([]string{"compose", "-f", d.composePath}, args...)
	cmd := exec.Command("docker", fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &DeploymentCommandFailed{
			Args:   fullArgs,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}
	return nil
}
