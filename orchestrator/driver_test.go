package orchestrator

import "testing"

func TestDriverUpFailureIsDeploymentCommandFailed(t *testing.T) {
	// docker compose against a nonexistent file always fails (or the
	// binary itself may be absent in the test environment); either way
	// Driver must surface a DeploymentCommandFailed, never a bare error.
	d := NewDriver("/nonexistent/docker-compose.yml")
	err := d.Up()
	if err == nil {
		t.Skip("docker compose unexpectedly succeeded against a nonexistent file")
	}
	if _, ok := err.(*DeploymentCommandFailed); !ok {
		t.Fatalf("expected *DeploymentCommandFailed, got %T: %v", err, err)
	}
}
