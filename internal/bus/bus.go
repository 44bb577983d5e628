// Package bus routes CPU/DMA-visible 32-bit addresses to BIOS, WRAM, MMIO,
// palette/VRAM/OAM, and cartridge ROM/SRAM, applying the GBA's half-word
// rotation and sign-extension quirks on misaligned loads.
package bus

import (
	"bytes"
	"encoding/gob"
	"math/bits"

	"github.com/gba-emu/core/internal/cart"
	"github.com/gba-emu/core/internal/mmio"
)

const (
	biosSize    = 16 * 1024
	ewramSize   = 256 * 1024
	iwramSize   = 32 * 1024
	paletteSize = 1024
	vramSize    = 96 * 1024
	oamSize     = 1024
)

// Bus owns the flat memory regions and dispatches I/O to the mmio.Registrar.
type Bus struct {
	bios    []byte
	ewram   [ewramSize]byte
	iwram   [iwramSize]byte
	palette [paletteSize]byte
	vram    [vramSize]byte
	oam     [oamSize]byte

	cart *cart.Cartridge
	io   *mmio.Registrar

	openBus uint32
}

// New constructs a Bus with io wired to the Machine's mmio.Registrar,
// populated with all component register handlers before first use.
func New(io *mmio.Registrar) *Bus {
	return &Bus{io: io}
}

// SetBIOS installs the BIOS image, zero-padded/truncated to 16 KiB.
func (b *Bus) SetBIOS(data []byte) {
	b.bios = make([]byte, biosSize)
	copy(b.bios, data)
}

// SetCartridge installs the loaded cartridge.
func (b *Bus) SetCartridge(c *cart.Cartridge) { b.cart = c }

// Cartridge returns the currently installed cartridge, or nil.
func (b *Bus) Cartridge() *cart.Cartridge { return b.cart }

func region(addr uint32) byte { return byte((addr >> 24) & 0xFF) }

// ReadByte returns the raw byte at addr with no rotation applied.
func (b *Bus) ReadByte(addr uint32) byte {
	v := b.readByteRaw(addr)
	b.openBus = (b.openBus << 8) | uint32(v)
	return v
}

func (b *Bus) readByteRaw(addr uint32) byte {
	switch region(addr) {
	case 0x00, 0x01:
		off := addr & 0x3FFF
		if b.bios != nil && addr <= 0x3FFF {
			return b.bios[off]
		}
		return byte(b.openBus)
	case 0x02:
		return b.ewram[addr&(ewramSize-1)]
	case 0x03:
		return b.iwram[addr&(iwramSize-1)]
	case 0x04:
		off := addr & 0x3FF
		if off > 0x3FE {
			return 0
		}
		v, ok := b.io.ReadByte(off)
		if !ok {
			return 0
		}
		return v
	case 0x05:
		return b.palette[addr&(paletteSize-1)]
	case 0x06:
		return b.vram[vramOffset(addr)]
	case 0x07:
		return b.oam[addr&(oamSize-1)]
	case 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D:
		if b.cart == nil {
			return 0
		}
		return b.cart.ReadROM(addr & 0x01FFFFFF)
	case 0x0E, 0x0F:
		if b.cart == nil {
			return 0xFF
		}
		return b.cart.ReadBackup(addr & 0xFFFF)
	default:
		return byte(b.openBus)
	}
}

// vramOffset implements VRAM's non-trivial wrap: the address window repeats
// every 0x20000 (128 KiB) bytes, and within each 128 KiB block the top
// 32 KiB (0x18000-0x1FFFF) mirror the preceding 32 KiB (0x10000-0x17FFF)
// rather than continuing the 96 KiB image.
func vramOffset(addr uint32) uint32 {
	off := addr & 0x1FFFF
	if off >= 0x18000 {
		off -= 0x8000
	}
	return off
}

// WriteByte writes a raw byte. Byte-width writes to palette/VRAM are
// mirrored to fill the containing halfword (hardware has no 8-bit write
// path to those regions); byte writes to OAM are a no-op.
func (b *Bus) WriteByte(addr uint32, v byte) {
	b.openBus = (b.openBus << 8) | uint32(v)
	switch region(addr) {
	case 0x02:
		b.ewram[addr&(ewramSize-1)] = v
	case 0x03:
		b.iwram[addr&(iwramSize-1)] = v
	case 0x04:
		off := addr & 0x3FF
		if off <= 0x3FE {
			b.io.WriteByte(off, v)
		}
	case 0x05:
		off := addr & (paletteSize - 1) &^ 1
		b.palette[off] = v
		b.palette[off+1] = v
	case 0x06:
		off := vramOffset(addr) &^ 1
		b.vram[off] = v
		b.vram[off+1] = v
	case 0x07:
		// OAM has no byte-write path; ignored.
	case 0x0E, 0x0F:
		if b.cart != nil {
			b.cart.WriteBackup(addr&0xFFFF, v)
		}
	}
}

// ReadHalf returns the aligned halfword at addr&^1, with no rotation.
func (b *Bus) ReadHalf(addr uint32) uint16 {
	addr &^= 1
	lo := b.ReadByte(addr)
	hi := b.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteHalf writes the aligned halfword at addr&^1.
func (b *Bus) WriteHalf(addr uint32, v uint16) {
	addr &^= 1
	switch region(addr) {
	case 0x05:
		off := addr & (paletteSize - 1)
		b.palette[off], b.palette[off+1] = byte(v), byte(v>>8)
	case 0x06:
		off := vramOffset(addr)
		b.vram[off], b.vram[off+1] = byte(v), byte(v>>8)
	case 0x07:
		off := addr & (oamSize - 1)
		b.oam[off], b.oam[off+1] = byte(v), byte(v>>8)
	default:
		b.WriteByte(addr, byte(v))
		b.WriteByte(addr+1, byte(v>>8))
		return
	}
	b.openBus = (b.openBus << 16) | uint32(v)
}

// ReadWord returns the aligned word at addr&^3, with no rotation.
func (b *Bus) ReadWord(addr uint32) uint32 {
	addr &^= 3
	b0 := b.ReadByte(addr)
	b1 := b.ReadByte(addr + 1)
	b2 := b.ReadByte(addr + 2)
	b3 := b.ReadByte(addr + 3)
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// WriteWord writes the aligned word at addr&^3.
func (b *Bus) WriteWord(addr uint32, v uint32) {
	addr &^= 3
	b.WriteHalf(addr, uint16(v))
	b.WriteHalf(addr+2, uint16(v>>16))
}

// ReadWordRotated is the CPU's LDR primitive: an aligned word load rotated
// right by 8*(misalignment in bytes) when addr isn't word-aligned.
func (b *Bus) ReadWordRotated(addr uint32) uint32 {
	v := b.ReadWord(addr)
	shift := (addr & 3) * 8
	if shift != 0 {
		v = bits.RotateLeft32(v, -int(shift))
	}
	return v
}

// ReadHalfRotate is the CPU's LDRH primitive: if addr is odd, reads the
// aligned halfword and rotates it right by 8 bits (GBA quirk). The result
// is zero-extended to 32 bits.
func (b *Bus) ReadHalfRotate(addr uint32) uint32 {
	v := uint32(b.ReadHalf(addr))
	if addr&1 != 0 {
		v = uint32(bits.RotateLeft16(uint16(v), -8))
	}
	return v
}

// ReadHalfSigned is the CPU's LDRSH primitive: if addr is odd, sign-extends
// only the high byte of the aligned halfword; otherwise sign-extends the
// full halfword. Returned as the 32-bit two's-complement representation.
func (b *Bus) ReadHalfSigned(addr uint32) uint32 {
	if addr&1 != 0 {
		hi := b.ReadByte(addr)
		return uint32(int32(int8(hi)))
	}
	h := b.ReadHalf(addr)
	return uint32(int32(int16(h)))
}

// OpenBus returns the last value observed on the bus, used as the read
// result for out-of-range/unmapped addresses.
func (b *Bus) OpenBus() uint32 { return b.openBus }

type busState struct {
	EWRAM   [ewramSize]byte
	IWRAM   [iwramSize]byte
	Palette [paletteSize]byte
	VRAM    [vramSize]byte
	OAM     [oamSize]byte
	OpenBus uint32
	Backup  []byte
}

// SaveState serializes RAM/palette/VRAM/OAM contents and cartridge backup.
func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		EWRAM: b.ewram, IWRAM: b.iwram, Palette: b.palette, VRAM: b.vram, OAM: b.oam,
		OpenBus: b.openBus,
	}
	if b.cart != nil {
		s.Backup = b.cart.SaveBackup()
	}
	_ = enc.Encode(s)
	return buf.Bytes()
}

// LoadState restores state written by SaveState.
func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.ewram, b.iwram, b.palette, b.vram, b.oam = s.EWRAM, s.IWRAM, s.Palette, s.VRAM, s.OAM
	b.openBus = s.OpenBus
	if b.cart != nil && s.Backup != nil {
		b.cart.LoadBackup(s.Backup)
	}
}
