package uf2

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seg struct {
	typ   uint32
	paddr uint32
	data  []byte
	memsz uint32
}

// buildELF returns a minimal little-endian ELF32 ARM executable with one
// program header per segment.
func buildELF(segs ...seg) []byte {
	const ehsize, phsize = 52, 32
	le := binary.LittleEndian
	var b bytes.Buffer
	ident := [16]byte{0x7f, 'E', 'L', 'F', 1, 1, 1}
	b.Write(ident[:])
	hdr := []any{
		uint16(2), uint16(40), uint32(1), uint32(FlashStart + 0x100), // type, machine, version, entry
		uint32(ehsize), uint32(0), uint32(0x05000200), // phoff, shoff, flags
		uint16(ehsize), uint16(phsize), uint16(len(segs)), uint16(40), uint16(0), uint16(0),
	}
	for _, v := range hdr {
		_ = binary.Write(&b, le, v)
	}
	off := uint32(ehsize + phsize*len(segs))
	for _, s := range segs {
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint32(len(s.data))
		}
		for _, v := range []uint32{s.typ, off, s.paddr, s.paddr, uint32(len(s.data)), memsz, 5, 4} {
			_ = binary.Write(&b, le, v)
		}
		off += uint32(len(s.data))
	}
	for _, s := range segs {
		b.Write(s.data)
	}
	return b.Bytes()
}

func fill(n int, v byte) []byte { return bytes.Repeat([]byte{v}, n) }

func TestBlock_RoundTripAndLayout(t *testing.T) {
	in := Block{Flags: FlagFamilyIDPresent, Addr: FlashStart, BlockNo: 3, NumBlocks: 9, Family: FamilyRP2040, Data: fill(PayloadSize, 0xAB)}
	raw, err := in.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, BlockSize)

	le := binary.LittleEndian
	assert.Equal(t, uint32(Magic0), le.Uint32(raw[0:]))
	assert.Equal(t, uint32(Magic1), le.Uint32(raw[4:]))
	assert.Equal(t, uint32(PayloadSize), le.Uint32(raw[16:]))
	assert.Equal(t, uint32(FamilyRP2040), le.Uint32(raw[28:]))
	assert.Equal(t, uint32(MagicEnd), le.Uint32(raw[508:]))
	assert.Equal(t, byte(0), raw[32+PayloadSize], "padding after the payload is zero")

	var out Block
	require.NoError(t, out.UnmarshalBinary(raw))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	raw[508] ^= 0xFF
	assert.ErrorIs(t, out.UnmarshalBinary(raw), ErrBadMagic)
	assert.ErrorIs(t, out.UnmarshalBinary(raw[:100]), ErrShortBlock)
}

func TestWriter_SplitsAndPads(t *testing.T) {
	var buf bytes.Buffer
	img := append(fill(300, 1), fill(300, 2)...)
	w := NewWriter(&buf, FlashStart, FamilyRP2040, len(img))
	n, err := w.Write(img)
	require.NoError(t, err)
	require.Equal(t, len(img), n)
	require.NoError(t, w.Flush())

	blocks, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	for i, b := range blocks {
		assert.Equal(t, uint32(FlashStart+i*PayloadSize), b.Addr)
		assert.Equal(t, uint32(i), b.BlockNo)
		assert.Equal(t, uint32(3), b.NumBlocks)
	}
	assert.Equal(t, fill(PayloadSize, 1), blocks[0].Data)
	assert.Equal(t, append(fill(44, 1), fill(212, 2)...), blocks[1].Data)
	assert.Equal(t, append(fill(88, 2), fill(168, 0)...), blocks[2].Data)

	_, err = w.Write(fill(PayloadSize, 3))
	assert.Error(t, err, "writing past the declared size")
}

func TestFromELF_PagesSegments(t *testing.T) {
	elfData := buildELF(
		seg{typ: 1, paddr: FlashStart, data: fill(0x100, 0x11)},
		seg{typ: 1, paddr: FlashStart + 0x180, data: fill(0x100, 0x22)}, // straddles two pages
		seg{typ: 1, paddr: RAMStart, data: nil, memsz: 0x400},          // .bss: no file data
		seg{typ: 4, paddr: 0, data: fill(8, 0x33)},                     // PT_NOTE
	)
	pages, err := FromELF(bytes.NewReader(elfData), Options{})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, uint32(FlashStart), pages[0].Addr)
	assert.Equal(t, fill(PayloadSize, 0x11), pages[0].Data[:])

	assert.Equal(t, uint32(FlashStart+0x100), pages[1].Addr)
	assert.Equal(t, append(fill(0x80, 0), fill(0x80, 0x22)...), pages[1].Data[:])

	assert.Equal(t, uint32(FlashStart+0x200), pages[2].Addr)
	assert.Equal(t, append(fill(0x80, 0x22), fill(0x80, 0)...), pages[2].Data[:])
}

func TestFromELF_Rejections(t *testing.T) {
	ram := buildELF(seg{typ: 1, paddr: RAMStart, data: fill(16, 1)})
	_, err := FromELF(bytes.NewReader(ram), Options{})
	assert.ErrorIs(t, err, ErrAddress)

	pages, err := FromELF(bytes.NewReader(ram), Options{AllowRAM: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(RAMStart), pages[0].Addr)

	_, err = FromELF(bytes.NewReader(buildELF(seg{typ: 1, paddr: 0x08000000, data: fill(4, 1)})), Options{AllowRAM: true})
	assert.ErrorIs(t, err, ErrAddress)

	_, err = FromELF(bytes.NewReader(buildELF(seg{typ: 4, data: fill(4, 1)})), Options{})
	assert.ErrorIs(t, err, ErrNoSegments)

	_, err = FromELF(bytes.NewReader([]byte("not an elf")), Options{})
	assert.Error(t, err)
}

func TestConvertELF_ThenSummarize(t *testing.T) {
	elfData := buildELF(
		seg{typ: 1, paddr: FlashStart, data: fill(0x300, 0x5A)},
		seg{typ: 1, paddr: FlashStart + 0x1000, data: fill(0x10, 0xA5)},
	)
	var out bytes.Buffer
	n, err := ConvertELF(bytes.NewReader(elfData), &out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4*BlockSize, out.Len())

	blocks, err := Parse(&out)
	require.NoError(t, err)
	want := Summary{
		Blocks:    4,
		Family:    FamilyRP2040,
		HasFamily: true,
		Ranges:    []Range{{FlashStart, FlashStart + 0x300}, {FlashStart + 0x1000, FlashStart + 0x1100}},
		Bytes:     4 * PayloadSize,
		Complete:  true,
	}
	if diff := cmp.Diff(want, Summarize(blocks)); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}
}

func TestParse_TruncatedAndIncomplete(t *testing.T) {
	var buf bytes.Buffer
	pages := []Page{{Addr: FlashStart + PayloadSize}, {Addr: FlashStart}}
	require.NoError(t, WritePages(&buf, pages, FamilyRP2040))
	raw := buf.Bytes()

	_, err := Parse(bytes.NewReader(raw[:BlockSize+10]))
	assert.ErrorIs(t, err, ErrShortBlock)

	blocks, err := Parse(bytes.NewReader(raw[:BlockSize]))
	require.NoError(t, err)
	s := Summarize(blocks)
	assert.False(t, s.Complete, "one of two declared blocks")
	assert.Equal(t, []Range{{FlashStart, FlashStart + PayloadSize}}, s.Ranges, "pages are sorted before writing")
}
