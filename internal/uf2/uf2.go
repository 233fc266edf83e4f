// Package uf2 reads and writes UF2 images, the format the RP2040 bootsel
// volume accepts.
package uf2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

const (
	Magic0   = 0x0A324655
	Magic1   = 0x9E5D5157
	MagicEnd = 0x0AB16F30

	FlagNotMainFlash    = 0x00000001
	FlagFamilyIDPresent = 0x00002000

	FamilyRP2040 = 0xE48BFF56

	BlockSize   = 512
	PayloadSize = 256
	dataSize    = 476
)

var (
	ErrBadMagic   = errors.New("uf2: bad magic")
	ErrShortBlock = errors.New("uf2: truncated block")
	ErrPayload    = errors.New("uf2: payload larger than a block")
)

// Block is one 512-byte UF2 block.
type Block struct {
	Flags     uint32
	Addr      uint32
	BlockNo   uint32
	NumBlocks uint32
	Family    uint32 // or file size when FlagFamilyIDPresent is clear
	Data      []byte // at most 476 bytes; the payload size is len(Data)
}

// MarshalBinary encodes b as a 512-byte block.
func (b Block) MarshalBinary() ([]byte, error) {
	if len(b.Data) > dataSize {
		return nil, ErrPayload
	}
	out := make([]byte, BlockSize)
	le := binary.LittleEndian
	le.PutUint32(out[0:], Magic0)
	le.PutUint32(out[4:], Magic1)
	le.PutUint32(out[8:], b.Flags)
	le.PutUint32(out[12:], b.Addr)
	le.PutUint32(out[16:], uint32(len(b.Data)))
	le.PutUint32(out[20:], b.BlockNo)
	le.PutUint32(out[24:], b.NumBlocks)
	le.PutUint32(out[28:], b.Family)
	copy(out[32:32+dataSize], b.Data)
	le.PutUint32(out[508:], MagicEnd)
	return out, nil
}

// UnmarshalBinary decodes a 512-byte block.
func (b *Block) UnmarshalBinary(p []byte) error {
	if len(p) < BlockSize {
		return ErrShortBlock
	}
	le := binary.LittleEndian
	if le.Uint32(p[0:]) != Magic0 || le.Uint32(p[4:]) != Magic1 || le.Uint32(p[508:]) != MagicEnd {
		return ErrBadMagic
	}
	n := le.Uint32(p[16:])
	if n > dataSize {
		return ErrPayload
	}
	*b = Block{
		Flags:     le.Uint32(p[8:]),
		Addr:      le.Uint32(p[12:]),
		BlockNo:   le.Uint32(p[20:]),
		NumBlocks: le.Uint32(p[24:]),
		Family:    le.Uint32(p[28:]),
		Data:      append([]byte(nil), p[32:32+n]...),
	}
	return nil
}

// Page is one 256-byte payload at a target address.
type Page struct {
	Addr uint32
	Data [PayloadSize]byte
}

// WritePages emits pages, sorted by address, as a complete UF2 file.
func WritePages(w io.Writer, pages []Page, family uint32) error {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Addr < pages[j].Addr })
	for i := range pages {
		b := Block{
			Flags:     FlagFamilyIDPresent,
			Addr:      pages[i].Addr,
			BlockNo:   uint32(i),
			NumBlocks: uint32(len(pages)),
			Family:    family,
			Data:      pages[i].Data[:],
		}
		raw, err := b.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("uf2: write block %d: %w", i, err)
		}
	}
	return nil
}

// Writer streams a flat binary image into UF2 blocks starting at base.
// size must be the total number of bytes that will be written.
type Writer struct {
	w       io.Writer
	base    uint32
	family  uint32
	total   uint32
	blockNo uint32
	page    [PayloadSize]byte
	fill    int
	err     error
}

func NewWriter(w io.Writer, base, family uint32, size int) *Writer {
	return &Writer{
		w:      w,
		base:   base,
		family: family,
		total:  uint32((size + PayloadSize - 1) / PayloadSize),
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n := 0
	for len(p) > 0 {
		c := copy(w.page[w.fill:], p)
		w.fill += c
		n += c
		p = p[c:]
		if w.fill == PayloadSize {
			if err := w.emit(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes a final zero-padded partial page, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.fill == 0 {
		return nil
	}
	clear(w.page[w.fill:])
	return w.emit()
}

func (w *Writer) emit() error {
	if w.blockNo >= w.total {
		w.err = fmt.Errorf("uf2: more than the %d declared blocks", w.total)
		return w.err
	}
	b := Block{
		Flags:     FlagFamilyIDPresent,
		Addr:      w.base + w.blockNo*PayloadSize,
		BlockNo:   w.blockNo,
		NumBlocks: w.total,
		Family:    w.family,
		Data:      w.page[:],
	}
	raw, _ := b.MarshalBinary()
	if _, err := w.w.Write(raw); err != nil {
		w.err = err
		return err
	}
	w.blockNo++
	w.fill = 0
	return nil
}

// Parse reads every block of a UF2 file.
func Parse(r io.Reader) ([]Block, error) {
	var (
		out []Block
		buf = make([]byte, BlockSize)
	)
	for i := 0; ; i++ {
		_, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return out, fmt.Errorf("block %d: %w", i, ErrShortBlock)
		}
		if err != nil {
			return out, err
		}
		var b Block
		if err := b.UnmarshalBinary(buf); err != nil {
			return out, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
}

// Range is a contiguous target address span [Start, End).
type Range struct {
	Start uint32
	End   uint32
}

type Summary struct {
	Blocks    int
	Family    uint32
	HasFamily bool
	Ranges    []Range
	Bytes     uint32
	Complete  bool // block numbers 0..n-1 all present with matching totals
}

// Summarize reports the address ranges, block count and family of blocks.
func Summarize(blocks []Block) Summary {
	s := Summary{Blocks: len(blocks), Complete: len(blocks) > 0}
	seen := make(map[uint32]bool, len(blocks))
	spans := make([]Range, 0, len(blocks))
	for _, b := range blocks {
		if b.Flags&FlagFamilyIDPresent != 0 && !s.HasFamily {
			s.Family, s.HasFamily = b.Family, true
		}
		if b.NumBlocks != uint32(len(blocks)) || b.BlockNo >= b.NumBlocks || seen[b.BlockNo] {
			s.Complete = false
		}
		seen[b.BlockNo] = true
		if b.Flags&FlagNotMainFlash != 0 {
			continue
		}
		s.Bytes += uint32(len(b.Data))
		spans = append(spans, Range{b.Addr, b.Addr + uint32(len(b.Data))})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	for _, r := range spans {
		if n := len(s.Ranges); n > 0 && r.Start <= s.Ranges[n-1].End {
			s.Ranges[n-1].End = max(s.Ranges[n-1].End, r.End)
			continue
		}
		s.Ranges = append(s.Ranges, r)
	}
	return s
}
