package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Check is the outcome of one doctor check.
type Check struct {
	Tool     string
	Path     string
	Version  string
	Found    bool
	Required bool
	Hint     string // how to install it
}

type tool struct {
	tool     string
	args     []string
	required bool
	hint     string
}

// Hints for the Rust workflow the Go one replaces, kept so boards built
// either way can be checked from one place.
const (
	RustTarget     = "thumbv6m-none-eabi"
	HintRustup     = "https://rustup.rs"
	HintRustTarget = "rustup target add " + RustTarget
	HintElf2uf2    = "cargo install elf2uf2-rs"
	HintPicotool   = "sudo apt install build-essential pkg-config libusb-1.0-0-dev cmake && " +
		"git clone https://github.com/raspberrypi/picotool && cmake -S picotool -B picotool/build && cmake --build picotool/build"
	HintTinyGo = "https://tinygo.org/getting-started/install/"
)

func (c Config) tools() []tool {
	return []tool{
		{tool: c.TinyGo, args: []string{"version"}, required: true, hint: HintTinyGo},
		{tool: c.Picotool.Path, args: []string{"version"}, hint: HintPicotool},
		{tool: "rustup", args: []string{"--version"}, hint: HintRustup},
		{tool: "elf2uf2-rs", args: []string{"--help"}, hint: HintElf2uf2},
	}
}

// Doctor checks every tool and reports presence and version. The Cortex-M0+
// rust target is reported as its own check after the tools.
func Doctor(ctx context.Context, c Config, r *Runner) []Check {
	var out []Check
	for _, p := range c.tools() {
		ch := Check{Tool: p.tool, Required: p.required, Hint: p.hint}
		path, err := r.resolve(p.tool)
		if err == nil {
			ch.Found, ch.Path = true, path
			if v, err := r.Output(ctx, p.tool, p.args...); err == nil {
				ch.Version = firstLine(v)
			}
		}
		out = append(out, ch)
	}
	return append(out, rustTarget(ctx, r))
}

// rustTarget asks rustup whether the RP2040 target is installed.
func rustTarget(ctx context.Context, r *Runner) Check {
	ch := Check{Tool: RustTarget, Hint: HintRustTarget}
	list, err := r.Output(ctx, "rustup", "target", "list", "--installed")
	if err != nil {
		return ch
	}
	for _, line := range strings.Split(list, "\n") {
		if strings.TrimSpace(line) == RustTarget {
			ch.Found, ch.Path, ch.Version = true, "rustup", "installed"
			break
		}
	}
	return ch
}

// Healthy returns ErrToolMissing when a required tool is missing.
func Healthy(checks []Check) error {
	var errs []error
	for _, c := range checks {
		if c.Required && !c.Found {
			errs = append(errs, fmt.Errorf("%s: %w", c.Tool, ErrToolMissing))
		}
	}
	return errors.Join(errs...)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
