package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picodemo/internal/flash"
	"picodemo/internal/toolchain"
	"picodemo/internal/uf2"
	"picodemo/internal/wokwi"
	"picodemo/setups"
)

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the build and flashing tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := toolchain.Doctor(cmd.Context(), a.cfg, a.runner)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tSTATUS\tVERSION\tHINT")
			for _, c := range checks {
				status, hint := "ok", ""
				if !c.Found {
					status, hint = "missing", c.Hint
					if !c.Required {
						status = "optional"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Tool, status, c.Version, hint)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return toolchain.Healthy(checks)
		},
	}
}

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the firmware ELF with tinygo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			elf, err := toolchain.Build(cmd.Context(), a.cfg, a.runner)
			if err != nil {
				return err
			}
			a.log.Info("built", zap.String("elf", elf))
			return nil
		},
	}
}

// convert writes the UF2 image of an ELF file.
func (a *app) convert(elfPath, uf2Path string) error {
	in, err := os.Open(elfPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(uf2Path)
	if err != nil {
		return err
	}
	n, err := uf2.ConvertELF(in, out, uf2.Options{Family: a.cfg.Flash.Family, AllowRAM: a.cfg.Flash.AllowRAM})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(uf2Path)
		return fmt.Errorf("convert %s: %w", elfPath, err)
	}
	a.log.Info("converted", zap.String("uf2", uf2Path), zap.Int("blocks", n))
	return nil
}

func (a *app) uf2Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uf2 [elf] [uf2]",
		Short: "Convert an ELF to UF2",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			elf, out := a.cfg.ELFPath(), a.cfg.UF2Path()
			if len(args) > 0 {
				elf = args[0]
			}
			if len(args) > 1 {
				out = args[1]
			}
			return a.convert(elf, out)
		},
	}
}

func (a *app) finder() *flash.Finder {
	return &flash.Finder{Label: a.cfg.Flash.Label, Roots: a.cfg.Flash.MountRoots, Log: a.log}
}

func (a *app) deploy(cmd *cobra.Command, uf2Path string, wait bool) error {
	f := a.finder()
	var (
		vols []flash.Volume
		err  error
	)
	if wait {
		vols, err = f.Wait(cmd.Context())
	} else {
		vols, err = f.Find()
	}
	if err != nil {
		return fmt.Errorf("%w (hold BOOTSEL while plugging in the board)", err)
	}
	return flash.Copy(cmd.Context(), uf2Path, vols, a.log)
}

func (a *app) deployCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "deploy [uf2]",
		Short: "Copy a UF2 to every mounted bootsel volume",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.UF2Path()
			if len(args) == 1 {
				path = args[0]
			}
			return a.deploy(cmd, path, wait)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for a volume to be mounted")
	return cmd
}

func (a *app) picotool() flash.Picotool {
	return flash.Picotool{Path: a.cfg.Picotool.Path, Runner: a.runner}
}

func (a *app) loadCmd() *cobra.Command {
	var execute bool
	cmd := &cobra.Command{
		Use:   "load [uf2]",
		Short: "Load a UF2 with picotool load -f",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.UF2Path()
			if len(args) == 1 {
				path = args[0]
			}
			return a.picotool().Load(cmd.Context(), path, execute || a.cfg.Picotool.Execute)
		},
	}
	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "run the image after loading")
	return cmd
}

func (a *app) flashCmd() *cobra.Command {
	var (
		usePicotool bool
		wait        bool
	)
	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Build, convert and flash in one step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			elf, err := toolchain.Build(cmd.Context(), a.cfg, a.runner)
			if err != nil {
				return err
			}
			if err := a.convert(elf, a.cfg.UF2Path()); err != nil {
				return err
			}
			if usePicotool {
				return a.picotool().Load(cmd.Context(), a.cfg.UF2Path(), true)
			}
			return a.deploy(cmd, a.cfg.UF2Path(), wait)
		},
	}
	cmd.Flags().BoolVar(&usePicotool, "picotool", false, "load with picotool instead of the bootsel volume")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for a volume to be mounted")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	var device bool
	cmd := &cobra.Command{
		Use:   "info [uf2]",
		Short: "Summarize a UF2 file, or the connected board with --device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if device {
				return a.picotool().Info(cmd.Context())
			}
			path := a.cfg.UF2Path()
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			blocks, err := uf2.Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			s := uf2.Summarize(blocks)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "file:     %s\n", path)
			fmt.Fprintf(w, "blocks:   %d (complete: %t)\n", s.Blocks, s.Complete)
			if s.HasFamily {
				fmt.Fprintf(w, "family:   %#08x%s\n", s.Family, familyName(s.Family))
			}
			fmt.Fprintf(w, "payload:  %d bytes\n", s.Bytes)
			for _, r := range s.Ranges {
				fmt.Fprintf(w, "range:    %#08x-%#08x (%d bytes)\n", r.Start, r.End, r.End-r.Start)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&device, "device", "d", false, "run picotool info -a against a board in bootsel mode")
	return cmd
}

func familyName(id uint32) string {
	if id == uf2.FamilyRP2040 {
		return " (rp2040)"
	}
	return ""
}

func (a *app) simCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sim",
		Short: "Write wokwi.toml and diagram.json for the selected board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := wokwi.Build(setups.Selected)
			if err != nil {
				return err
			}
			p := wokwi.NewProject(a.cfg.UF2Path(), a.cfg.ELFPath())
			if err := wokwi.Write(a.cfg.Wokwi.Dir, p, d); err != nil {
				return err
			}
			a.log.Info("wrote wokwi project", zap.String("dir", a.cfg.Wokwi.Dir), zap.String("setup", setups.Selected.Name))
			return nil
		},
	}
}
