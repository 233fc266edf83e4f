package flash

import (
	"context"
	"fmt"
)

// Runner executes an external tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// Picotool loads images over USB with the Raspberry Pi picotool.
type Picotool struct {
	Path   string // defaults to "picotool"
	Runner Runner
}

// LoadArgs returns the picotool arguments for loading uf2.
func LoadArgs(uf2 string, execute bool) []string {
	args := []string{"load", "-f", uf2}
	if execute {
		args = append(args, "-x")
	}
	return args
}

func (p Picotool) run(ctx context.Context, verb string, args ...string) error {
	path := p.Path
	if path == "" {
		path = "picotool"
	}
	if err := p.Runner.Run(ctx, path, args...); err != nil {
		return fmt.Errorf("picotool %s: %w", verb, err)
	}
	return nil
}

// Load runs "picotool load -f <uf2>", adding -x to start the image.
func (p Picotool) Load(ctx context.Context, uf2 string, execute bool) error {
	return p.run(ctx, "load", LoadArgs(uf2, execute)...)
}

// Info runs "picotool info -a" against a device in bootsel mode. The
// report goes to the runner's output.
func (p Picotool) Info(ctx context.Context) error {
	return p.run(ctx, "info", "info", "-a")
}
