// Package gba wires the Scheduler, Bus, Interrupt controller, DMA engine,
// CPU, MMIO registrar, and the PPU/Timer/Keypad/Cartridge/audio-FIFO
// components into one Machine, exposing Step/RunUntil/RaiseInterrupt/
// TriggerDMA/LoadROM/LoadBIOS as the surface an external collaborator drives.
package gba

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/gba-emu/core/internal/audio"
	"github.com/gba-emu/core/internal/bus"
	"github.com/gba-emu/core/internal/cart"
	"github.com/gba-emu/core/internal/cpu"
	"github.com/gba-emu/core/internal/dma"
	"github.com/gba-emu/core/internal/interrupt"
	"github.com/gba-emu/core/internal/keypad"
	"github.com/gba-emu/core/internal/mmio"
	"github.com/gba-emu/core/internal/ppu"
	"github.com/gba-emu/core/internal/scheduler"
	"github.com/gba-emu/core/internal/timer"
)

// Buttons is the 10-button state a collaborator reports each frame.
type Buttons struct {
	A, B, Select, Start   bool
	Right, Left, Up, Down bool
	R, L                  bool
}

func (b Buttons) mask() uint16 {
	var m uint16
	set := func(bit int, pressed bool) {
		if pressed {
			m |= 1 << uint(bit)
		}
	}
	set(keypad.A, b.A)
	set(keypad.B, b.B)
	set(keypad.Select, b.Select)
	set(keypad.Start, b.Start)
	set(keypad.Right, b.Right)
	set(keypad.Left, b.Left)
	set(keypad.Up, b.Up)
	set(keypad.Down, b.Down)
	set(keypad.R, b.R)
	set(keypad.L, b.L)
	return m
}

// FrameSink receives a completed frame (240x160 BGR555, row-major).
type FrameSink interface{ Present(pixels []uint16) }

// AudioSink receives one drained stereo frame at a time.
type AudioSink interface{ PushStereo(l, r int16) }

// Logger receives a one-line message for a recoverable anomaly; nil
// disables logging. Shared with internal/dma's identical interface shape
// so a *log.Logger satisfies both without an adapter.
type Logger interface {
	Printf(format string, args ...any)
}

// DMAEvent identifies an external trigger condition for Machine.TriggerDMA,
// mirroring the timing conditions a real collaborator (PPU/timer hardware
// the core doesn't own end-to-end) would signal.
type DMAEvent int

const (
	DMAEventVBlank DMAEvent = iota
	DMAEventHBlank
	DMAEventFifoA
	DMAEventFifoB
)

const (
	frameWidth  = 240
	frameHeight = 160
)

// Machine owns every component and is the sole entry point a collaborator
// (CLI runner or windowed frontend) uses to drive the core.
type Machine struct {
	sched       *scheduler.Scheduler
	bus         *bus.Bus
	interrupts  *interrupt.Controller
	dmaEngine   *dma.Engine
	cpu         *cpu.CPU
	io          *mmio.Registrar
	ppu         *ppu.PPU
	timers      *timer.Bank
	keys        *keypad.Pad
	soundFIFO   *audio.Bank

	fb []uint16

	Logger Logger
}

// New constructs a fully wired Machine at GBA power-on state.
func New() *Machine {
	m := &Machine{
		sched:      scheduler.New(),
		interrupts: interrupt.New(),
		io:         mmio.New(),
		soundFIFO:  audio.New(),
		fb:         make([]uint16, frameWidth*frameHeight),
	}
	m.bus = bus.New(m.io)
	m.dmaEngine = dma.New(m.bus, m.sched, m.raiseDMA, m)
	m.keys = keypad.New(func() { m.interrupts.Raise(interrupt.Keypad) })
	m.timers = timer.New(m.onTimerOverflow)
	m.ppu = ppu.New(ppu.Hooks{
		OnHBlank:    m.dmaEngine.TriggerHBlank,
		OnVBlank:    m.dmaEngine.TriggerVBlank,
		RaiseHBlank: func() { m.interrupts.Raise(interrupt.HBlank) },
		RaiseVBlank: func() { m.interrupts.Raise(interrupt.VBlank) },
		RaiseVCount: func() { m.interrupts.Raise(interrupt.VCount) },
	})
	m.cpu = cpu.New(m.bus, m.sched, m.interrupts)

	m.io.Register(0x000, 0x007, m.ppu)
	m.io.Register(0x0A0, 0x0A7, m.soundFIFO)
	m.io.Register(0x100, 0x10F, m.timers)
	m.io.Register(0x130, 0x133, m.keys)
	m.io.Register(0x0B0, 0x0DF, m.dmaEngine)
	m.io.Register(0x200, 0x20B, &irqRegs{c: m.interrupts})
	return m
}

// Printf satisfies dma.Logger by forwarding to the optional Machine.Logger.
func (m *Machine) Printf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger.Printf(format, args...)
	}
}

func (m *Machine) raiseDMA(ch int) {
	m.interrupts.Raise(interrupt.DMA0 + interrupt.Source(ch))
}

// onTimerOverflow raises the matching timer IRQ and, for timers 0 and 1,
// forwards to the sound-FIFO DMA trigger they drive on real hardware
// (SOUNDCNT_H's configurable source timer is not modeled; timer N always
// drives FIFO N). The timer bank calls it only for timers whose IRQ-enable
// bit is set, so a timer with its IRQ disabled does not drive its FIFO.
func (m *Machine) onTimerOverflow(index int) {
	m.interrupts.Raise(interrupt.Timer0 + interrupt.Source(index))
	if index == 0 || index == 1 {
		m.dmaEngine.TriggerFifo(index)
	}
}

// LoadROM installs rom as the active cartridge, auto-detecting its backup
// storage type and parsing its header.
func (m *Machine) LoadROM(rom []byte) error {
	if len(rom) == 0 {
		return errors.New("gba: ROM image is empty")
	}
	c := cart.New(rom)
	m.bus.SetCartridge(c)
	return nil
}

// LoadBIOS installs data as the BIOS image. The GBA BIOS is exactly 16 KiB;
// anything larger is rejected outright rather than silently truncated.
func (m *Machine) LoadBIOS(data []byte) error {
	const biosSize = 16 * 1024
	if len(data) > biosSize {
		return fmt.Errorf("gba: BIOS image is %d bytes, want at most %d", len(data), biosSize)
	}
	m.bus.SetBIOS(data)
	return nil
}

// Step executes exactly one CPU instruction (or halted tick) and advances
// every time-driven component by the cycles it charged.
func (m *Machine) Step() int {
	cycles := m.cpu.Step()
	m.ppu.Tick(cycles)
	m.timers.Tick(cycles)
	return cycles
}

// RunUntil steps the Machine until the scheduler's cycle counter reaches or
// passes targetCycle.
func (m *Machine) RunUntil(targetCycle uint64) {
	for m.sched.Current() < targetCycle {
		m.Step()
	}
}

// Cycle returns the scheduler's current absolute cycle count, letting a
// collaborator (e.g. internal/platform's frame-pacing loop) compute how far
// to RunUntil without reaching into the scheduler directly.
func (m *Machine) Cycle() uint64 { return m.sched.Current() }

// PeekByte reads a byte from the bus without side effects on CPU state,
// for external inspection (e.g. cmd/gbacore-run's -watch address poke).
func (m *Machine) PeekByte(addr uint32) byte { return m.bus.ReadByte(addr) }

// RaiseInterrupt requests an interrupt from an external collaborator (e.g. a
// cartridge real-time-clock peripheral is out of scope, but the surface
// exists for whatever does need to assert a source directly).
func (m *Machine) RaiseInterrupt(src interrupt.Source) { m.interrupts.Raise(src) }

// TriggerDMA signals an external trigger condition for timing modes the
// Machine's own PPU/timer loop doesn't originate (used by tests and by a
// collaborator driving the core outside of the normal Step loop).
func (m *Machine) TriggerDMA(ev DMAEvent) {
	switch ev {
	case DMAEventVBlank:
		m.dmaEngine.TriggerVBlank()
	case DMAEventHBlank:
		m.dmaEngine.TriggerHBlank()
	case DMAEventFifoA:
		m.dmaEngine.TriggerFifo(0)
	case DMAEventFifoB:
		m.dmaEngine.TriggerFifo(1)
	}
}

// SetButtons updates the pressed-button mask evaluated by the keypad IRQ.
func (m *Machine) SetButtons(b Buttons) { m.keys.SetButtons(b.mask()) }

// Framebuffer returns the current 240x160 BGR555 frame. Pixel compositing
// is not implemented; this fills a deterministic test pattern so the
// surface is exercisable end to end without a real renderer.
func (m *Machine) Framebuffer() []uint16 {
	for y := 0; y < frameHeight; y++ {
		for x := 0; x < frameWidth; x++ {
			r := uint16(x * 31 / frameWidth)
			g := uint16(y * 31 / frameHeight)
			bch := uint16(m.ppu.VCount()) & 0x1F
			m.fb[y*frameWidth+x] = r | g<<5 | bch<<10
		}
	}
	return m.fb
}

// DrainAudio pulls up to max queued stereo frames from the sound FIFOs.
func (m *Machine) DrainAudio(max int) []int16 { return m.soundFIFO.Pull(max) }

// SaveBackup returns the cartridge's battery-backed memory, or nil if no
// cartridge is loaded.
func (m *Machine) SaveBackup() []byte {
	c := m.bus.Cartridge()
	if c == nil {
		return nil
	}
	return c.SaveBackup()
}

// LoadBackup restores previously saved cartridge backup memory.
func (m *Machine) LoadBackup(data []byte) {
	if c := m.bus.Cartridge(); c != nil {
		c.LoadBackup(data)
	}
}

type machineState struct {
	BusState []byte
	CPUState cpuSnapshot
}

type cpuSnapshot struct {
	Regs [16]uint32
	CPSR uint32
}

// SaveState serializes RAM/palette/VRAM/OAM/cartridge-backup (via
// bus.SaveState) plus the CPU's active registers and CPSR. Banked registers
// of other modes, SPSRs, and PPU/timer/DMA/interrupt/scheduler state are not
// saved.
func (m *Machine) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	snap := cpuSnapshot{CPSR: m.cpu.CPSR()}
	for i := byte(0); i < 16; i++ {
		snap.Regs[i] = m.cpu.R(i)
	}
	_ = enc.Encode(machineState{BusState: m.bus.SaveState(), CPUState: snap})
	return buf.Bytes()
}

// LoadState restores state written by SaveState.
func (m *Machine) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s machineState
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("gba: decode save state: %w", err)
	}
	m.bus.LoadState(s.BusState)
	m.cpu.SetCPSR(s.CPUState.CPSR)
	for i := byte(0); i < 15; i++ {
		m.cpu.SetR(i, s.CPUState.Regs[i])
	}
	// Regs[15] holds the pipeline lookahead; flush back to the instruction
	// that was next to execute.
	lookahead := uint32(8)
	if m.cpu.Thumb() {
		lookahead = 4
	}
	m.cpu.SetR(15, s.CPUState.Regs[15]-lookahead)
	return nil
}

// irqRegs adapts *interrupt.Controller to mmio.RegionHandler over the
// IE/IF/IME window (0x200-0x20B); kept local since internal/interrupt has
// no mmio dependency of its own.
type irqRegs struct {
	c *interrupt.Controller
}

// Offsets below are relative to this handler's registered range (0x200),
// per mmio.RegionHandler's contract: 0x00/0x01=IE, 0x02/0x03=IF, 0x08=IME.
func (r *irqRegs) ReadByte(offset uint32) byte {
	switch offset {
	case 0x00:
		return byte(r.c.IE())
	case 0x01:
		return byte(r.c.IE() >> 8)
	case 0x02:
		return byte(r.c.IF())
	case 0x03:
		return byte(r.c.IF() >> 8)
	case 0x08:
		if r.c.IME() {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (r *irqRegs) WriteByte(offset uint32, v byte) {
	switch offset {
	case 0x00:
		r.c.SetIE((r.c.IE() &^ 0x00FF) | uint16(v))
	case 0x01:
		r.c.SetIE((r.c.IE() &^ 0xFF00) | uint16(v)<<8)
	case 0x02:
		r.c.WriteIF(uint16(v))
	case 0x03:
		r.c.WriteIF(uint16(v) << 8)
	case 0x08:
		r.c.SetIME(v&1 != 0)
	}
}
