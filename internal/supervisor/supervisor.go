// Package supervisor restarts the analytics process through the host's
// process supervisor when the liveness checker declares it stalled.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/third-eye-sec/thirdeye/internal/logging"
)

const commandTimeout = 30 * time.Second

// Controller restarts a supervised service.
type Controller interface {
	Restart(ctx context.Context, service string) error
}

// Supervisorctl implements Controller by shelling out to supervisorctl.
type Supervisorctl struct {
	// Command is the argv prefix the service name is appended to.
	// Defaults to {"sudo", "supervisorctl", "restart"}.
	Command []string
}

// New returns a Supervisorctl with the default command.
func New() *Supervisorctl {
	return &Supervisorctl{Command: []string{"sudo", "supervisorctl", "restart"}}
}

// Restart runs the restart command for the given service and logs its output.
func (s *Supervisorctl) Restart(ctx context.Context, service string) error {
	if service == "" {
		return fmt.Errorf("no service name configured")
	}

	argv := append(append([]string{}, s.Command...), service)

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return fmt.Errorf("restarting %s: %w (output: %s)", service, err, output)
	}

	logging.Info("service restarted", "service", service, "output", output)
	return nil
}
