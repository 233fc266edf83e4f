// Package toolchain holds the host-side build configuration and runs the
// external tools (tinygo, picotool) the flashing workflow needs.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"picodemo/internal/flash"
	"picodemo/internal/uf2"
)

// DefaultConfigFile is looked up in the working directory.
const DefaultConfigFile = "picoflash.yaml"

type Config struct {
	Name    string   `yaml:"name"`    // output base name
	Target  string   `yaml:"target"`  // tinygo -target
	Package string   `yaml:"package"` // package to build
	OutDir  string   `yaml:"out_dir"`
	Tags    []string `yaml:"tags"`
	TinyGo  string   `yaml:"tinygo"`

	Flash    FlashConfig    `yaml:"flash"`
	Picotool PicotoolConfig `yaml:"picotool"`
	Wokwi    WokwiConfig    `yaml:"wokwi"`
}

type FlashConfig struct {
	Label      string   `yaml:"label"`
	MountRoots []string `yaml:"mount_roots"`
	Family     uint32   `yaml:"family"`
	AllowRAM   bool     `yaml:"allow_ram"`
}

type PicotoolConfig struct {
	Path    string `yaml:"path"`
	Execute bool   `yaml:"execute"` // pass -x after loading
}

type WokwiConfig struct {
	Dir string `yaml:"dir"` // where wokwi.toml and diagram.json go
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Name:    "picodemo",
		Target:  "pico",
		Package: ".",
		OutDir:  "build",
		TinyGo:  "tinygo",
		Flash: FlashConfig{
			Label:      flash.DefaultLabel,
			MountRoots: flash.DefaultRoots(),
			Family:     uf2.FamilyRP2040,
		},
		Picotool: PicotoolConfig{Path: "picotool"},
		Wokwi:    WokwiConfig{Dir: "."},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("toolchain: read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("toolchain: parse %s: %w", path, err)
	}
	if cfg.Name == "" || cfg.Target == "" {
		return cfg, fmt.Errorf("toolchain: %s: name and target are required", path)
	}
	return cfg, nil
}

func (c Config) ELFPath() string { return filepath.Join(c.OutDir, c.Name+".elf") }
func (c Config) UF2Path() string { return filepath.Join(c.OutDir, c.Name+".uf2") }
