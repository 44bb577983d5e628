// Package ppu models only the register/timing/trigger surface of the GBA
// PPU that the core consumes (DISPCNT/DISPSTAT/VCOUNT and HBlank/VBlank/
// VCount triggers); pixel compositing is an external collaborator's
// responsibility.
package ppu

const (
	VisibleLines  = 160
	TotalLines    = 228
	CyclesPerLine = 1232
	HBlankStart   = 1006 // cycles into the line where HBlank flag/IRQ assert
)

const (
	offDispCnt  = 0x00 // 0x04000000, 2 bytes
	offDispStat = 0x04 // 0x04000004, 2 bytes
	offVCount   = 0x06 // 0x04000006, 2 bytes (low byte used)
)

// Hooks are invoked unconditionally on the corresponding hardware event,
// regardless of DISPSTAT IRQ-enable bits, matching real GBA behavior where
// HBlank/VBlank DMA triggers fire independent of whether their interrupts
// are enabled. IRQ raising is separately gated on the DISPSTAT enable bits.
type Hooks struct {
	OnHBlank     func()
	OnVBlank     func()
	RaiseHBlank  func()
	RaiseVBlank  func()
	RaiseVCount  func()
}

// PPU holds DISPCNT/DISPSTAT/VCOUNT and the scanline/dot counters.
type PPU struct {
	dispcnt uint16
	dispstat uint16
	vcount  byte

	cycleInLine int
	inHBlank    bool

	hooks Hooks
}

// New returns a PPU at the start of line 0, dot 0.
func New(hooks Hooks) *PPU { return &PPU{hooks: hooks} }

// Tick advances PPU timing by cycles CPU cycles, firing HBlank/VBlank/VCount
// transitions and hooks as their thresholds are crossed.
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.cycleInLine++
		if !p.inHBlank && p.cycleInLine >= HBlankStart {
			p.inHBlank = true
			p.dispstat |= 1 << 1
			if p.dispstat&(1<<4) != 0 && p.hooks.RaiseHBlank != nil {
				p.hooks.RaiseHBlank()
			}
			if p.hooks.OnHBlank != nil {
				p.hooks.OnHBlank()
			}
		}
		if p.cycleInLine >= CyclesPerLine {
			p.cycleInLine = 0
			p.inHBlank = false
			p.dispstat &^= 1 << 1
			p.vcount++
			if int(p.vcount) >= TotalLines {
				p.vcount = 0
			}
			switch {
			case p.vcount == VisibleLines:
				p.dispstat |= 1 << 0
				if p.dispstat&(1<<3) != 0 && p.hooks.RaiseVBlank != nil {
					p.hooks.RaiseVBlank()
				}
				if p.hooks.OnVBlank != nil {
					p.hooks.OnVBlank()
				}
			case p.vcount == 0:
				p.dispstat &^= 1 << 0
			}
			p.updateVCountMatch()
		}
	}
}

func (p *PPU) updateVCountMatch() {
	lyc := byte(p.dispstat >> 8)
	if p.vcount == lyc {
		p.dispstat |= 1 << 2
		if p.dispstat&(1<<5) != 0 && p.hooks.RaiseVCount != nil {
			p.hooks.RaiseVCount()
		}
	} else {
		p.dispstat &^= 1 << 2
	}
}

// VCount returns the current scanline (0..227).
func (p *PPU) VCount() byte { return p.vcount }

// InHBlank reports whether the line is currently within its HBlank period.
func (p *PPU) InHBlank() bool { return p.inHBlank }

// InVBlank reports whether the current scanline is within VBlank.
func (p *PPU) InVBlank() bool { return int(p.vcount) >= VisibleLines }

// ReadByte implements mmio.RegionHandler.
func (p *PPU) ReadByte(offset uint32) byte {
	switch offset {
	case offDispCnt:
		return byte(p.dispcnt)
	case offDispCnt + 1:
		return byte(p.dispcnt >> 8)
	case offDispStat:
		return byte(p.dispstat)
	case offDispStat + 1:
		return byte(p.dispstat >> 8)
	case offVCount:
		return p.vcount
	case offVCount + 1:
		return 0
	}
	return 0
}

// WriteByte implements mmio.RegionHandler. VCOUNT is read-only; DISPSTAT's
// bottom 3 status bits (VBlank/HBlank/VCount flags) are read-only for the
// CPU and only modified internally by Tick.
func (p *PPU) WriteByte(offset uint32, v byte) {
	switch offset {
	case offDispCnt:
		p.dispcnt = (p.dispcnt &^ 0x00FF) | uint16(v)
	case offDispCnt + 1:
		p.dispcnt = (p.dispcnt & 0x00FF) | uint16(v)<<8
	case offDispStat:
		p.dispstat = (p.dispstat &^ 0x00F8) | uint16(v&0xF8) | (p.dispstat & 0x07)
	case offDispStat + 1:
		p.dispstat = (p.dispstat & 0x00FF) | uint16(v)<<8
	}
}
