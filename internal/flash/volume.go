// Package flash finds RP2040 bootsel volumes and writes UF2 images to
// them, or loads images through picotool.
package flash

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLabel = "RPI-RP2"
	InfoFile     = "INFO_UF2.TXT"
)

var ErrNoVolume = errors.New("flash: no bootsel volume mounted")

// Volume is a mounted bootsel drive.
type Volume struct {
	Path    string
	BoardID string
	Model   string
	Info    map[string]string // every "Key: value" line of INFO_UF2.TXT
}

// Finder looks for volumes named Label directly under each of Roots.
type Finder struct {
	Label string
	Roots []string
	Log   *zap.Logger
}

// DefaultRoots are the usual removable-media mount points.
func DefaultRoots() []string {
	roots := []string{"/media", "/run/media", "/Volumes", "/mnt"}
	if u := os.Getenv("USER"); u != "" {
		roots = append(roots, filepath.Join("/media", u), filepath.Join("/run/media", u))
	}
	return roots
}

func (f *Finder) log() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

func (f *Finder) label() string {
	if f.Label == "" {
		return DefaultLabel
	}
	return f.Label
}

// Find returns every mounted volume carrying the label and an INFO_UF2.TXT.
func (f *Finder) Find() ([]Volume, error) {
	var out []Volume
	for _, root := range f.Roots {
		dir := filepath.Join(root, f.label())
		info, err := os.Open(filepath.Join(dir, InfoFile))
		if err != nil {
			continue
		}
		v, err := ParseInfo(info)
		info.Close()
		if err != nil {
			f.log().Warn("unreadable info file", zap.String("dir", dir), zap.Error(err))
			continue
		}
		v.Path = dir
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrNoVolume
	}
	return out, nil
}

// ParseInfo reads INFO_UF2.TXT. The first line names the bootloader and
// model ("UF2 Bootloader v3.0"), the rest are "Key: value" lines.
func ParseInfo(r io.Reader) (Volume, error) {
	v := Volume{Info: map[string]string{}}
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if !strings.Contains(line, ":") {
				v.Info["Bootloader"] = line
				continue
			}
		}
		k, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		v.Info[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	if err := sc.Err(); err != nil {
		return v, err
	}
	v.BoardID = v.Info["Board-ID"]
	v.Model = v.Info["Model"]
	if v.BoardID == "" && v.Model == "" {
		return v, fmt.Errorf("flash: %s without Board-ID or Model", InfoFile)
	}
	return v, nil
}

// Wait returns the mounted volumes, watching the roots until one appears
// or ctx ends.
func (f *Finder) Wait(ctx context.Context) ([]Volume, error) {
	if vs, err := f.Find(); err == nil {
		return vs, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("flash: watcher: %w", err)
	}
	defer w.Close()

	watched := 0
	for _, root := range f.Roots {
		if err := w.Add(root); err == nil {
			watched++
		}
		// The info file is written after the mount point appears.
		_ = w.Add(filepath.Join(root, f.label()))
	}
	if watched == 0 {
		return nil, fmt.Errorf("flash: none of %v can be watched: %w", f.Roots, ErrNoVolume)
	}
	f.log().Info("waiting for bootsel volume", zap.String("label", f.label()), zap.Strings("roots", f.Roots))

	// Catch a mount that raced the watcher setup.
	if vs, err := f.Find(); err == nil {
		return vs, nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err, ok := <-w.Errors:
			if !ok {
				return nil, ErrNoVolume
			}
			f.log().Warn("watch error", zap.Error(err))
		case ev, ok := <-w.Events:
			if !ok {
				return nil, ErrNoVolume
			}
			f.log().Debug("fs event", zap.String("name", ev.Name), zap.Stringer("op", ev.Op))
			if ev.Op&fsnotify.Create != 0 && filepath.Base(ev.Name) == f.label() {
				_ = w.Add(ev.Name)
			}
			if vs, err := f.Find(); err == nil {
				return vs, nil
			}
		}
	}
}

// Copy writes the UF2 file to every volume concurrently. The bootloader
// reboots the board once the last block lands, so the file is written in
// one pass and synced.
func Copy(ctx context.Context, uf2Path string, vols []Volume, log *zap.Logger) error {
	if len(vols) == 0 {
		return ErrNoVolume
	}
	data, err := os.ReadFile(uf2Path)
	if err != nil {
		return fmt.Errorf("flash: read %s: %w", uf2Path, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range vols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(v.Path, filepath.Base(uf2Path))
			if err := writeSynced(dst, data); err != nil {
				return fmt.Errorf("flash: %s: %w", v.Path, err)
			}
			log.Info("copied", zap.String("volume", v.Path), zap.String("board", v.BoardID), zap.Int("bytes", len(data)))
			return nil
		})
	}
	return g.Wait()
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
