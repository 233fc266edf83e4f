package toolchain

import (
	"context"
	"os"
	"strings"
)

// BuildArgs returns the tinygo arguments for building the firmware ELF.
func (c Config) BuildArgs() []string {
	args := []string{"build", "-target=" + c.Target, "-o", c.ELFPath()}
	if len(c.Tags) > 0 {
		args = append(args, "-tags", strings.Join(c.Tags, ","))
	}
	return append(args, c.Package)
}

// Build compiles the firmware and returns the ELF path.
func Build(ctx context.Context, c Config, r *Runner) (string, error) {
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return "", err
	}
	if err := r.Run(ctx, c.TinyGo, c.BuildArgs()...); err != nil {
		return "", err
	}
	return c.ELFPath(), nil
}
