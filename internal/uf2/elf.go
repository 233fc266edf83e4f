package uf2

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"sort"
)

// RP2040 memory windows a loadable segment may target.
const (
	FlashStart = 0x10000000
	FlashEnd   = 0x11000000
	RAMStart   = 0x20000000
	RAMEnd     = 0x20042000
)

var (
	ErrAddress    = errors.New("uf2: segment outside flash")
	ErrNoSegments = errors.New("uf2: no loadable segments")
	ErrNotARM     = errors.New("uf2: not a 32-bit ARM ELF")
)

type Options struct {
	Family   uint32 // defaults to FamilyRP2040
	AllowRAM bool   // accept SRAM-only images (no_flash builds)
}

// FromELF collects the file contents of every PT_LOAD segment into
// 256-byte pages at the segment's physical address. Partial pages are
// zero-filled. Pages are returned sorted by address.
func FromELF(r io.ReaderAt, opts Options) ([]Page, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("uf2: %w", err)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		return nil, ErrNotARM
	}

	pages := map[uint32]*Page{}
	for i, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		start, end := uint32(p.Paddr), uint32(p.Paddr+p.Filesz)
		if !inRange(start, end, opts.AllowRAM) {
			return nil, fmt.Errorf("segment %d at %#08x-%#08x: %w", i, start, end, ErrAddress)
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("uf2: read segment %d: %w", i, err)
		}
		for addr := start; addr < end; {
			base := addr &^ (PayloadSize - 1)
			pg, ok := pages[base]
			if !ok {
				pg = &Page{Addr: base}
				pages[base] = pg
			}
			off := addr - base
			n := copy(pg.Data[off:], data[addr-start:])
			addr += uint32(n)
		}
	}
	if len(pages) == 0 {
		return nil, ErrNoSegments
	}
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

// ConvertELF writes the UF2 image of an ELF and returns the block count.
func ConvertELF(r io.ReaderAt, w io.Writer, opts Options) (int, error) {
	pages, err := FromELF(r, opts)
	if err != nil {
		return 0, err
	}
	fam := opts.Family
	if fam == 0 {
		fam = FamilyRP2040
	}
	return len(pages), WritePages(w, pages, fam)
}

func inRange(start, end uint32, ram bool) bool {
	if start >= FlashStart && end <= FlashEnd {
		return true
	}
	return ram && start >= RAMStart && end <= RAMEnd
}
