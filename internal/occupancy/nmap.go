package occupancy

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

const scanTimeout = 2 * time.Minute

var macPattern = regexp.MustCompile(`(?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}`)

// NmapScanner implements Scanner by running an nmap ping scan over the
// subnet and extracting MAC addresses from its output. nmap needs raw
// socket privileges to report MACs, hence the sudo prefix.
type NmapScanner struct {
	// Command is the argv prefix the subnet is appended to.
	// Defaults to {"sudo", "nmap", "-sn"}.
	Command []string
}

// NewNmapScanner returns a scanner with the default command.
func NewNmapScanner() *NmapScanner {
	return &NmapScanner{Command: []string{"sudo", "nmap", "-sn"}}
}

// Scan runs the ping scan and returns every MAC address in the output.
func (s *NmapScanner) Scan(ctx context.Context, subnet string) ([]string, error) {
	if subnet == "" {
		return nil, fmt.Errorf("no subnet configured")
	}

	argv := append(append([]string{}, s.Command...), subnet)

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", subnet, err)
	}

	return macPattern.FindAllString(string(out), -1), nil
}
