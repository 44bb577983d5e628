// Package cpu implements an ARM7TDMI interpreter: the banked register file,
// CPSR/SPSR, the 2-entry prefetch pipeline, condition evaluation, the
// barrel shifter, and ARM/THUMB decode dispatch.
package cpu

import "math/bits"

// Operating modes, matching the CPSR mode field encoding.
const (
	ModeUSR byte = 0x10
	ModeFIQ byte = 0x11
	ModeIRQ byte = 0x12
	ModeSVC byte = 0x13
	ModeABT byte = 0x17
	ModeUND byte = 0x1B
	ModeSYS byte = 0x1F
)

// CPSR bit positions.
const (
	flagN uint32 = 1 << 31
	flagZ uint32 = 1 << 30
	flagC uint32 = 1 << 29
	flagV uint32 = 1 << 28
	flagI uint32 = 1 << 7
	flagF uint32 = 1 << 6
	flagT uint32 = 1 << 5
	modeMask uint32 = 0x1F
)

// Bus is the subset of bus operations the CPU needs to fetch instructions
// and execute load/store instructions.
type Bus interface {
	ReadByte(addr uint32) byte
	WriteByte(addr uint32, v byte)
	ReadHalf(addr uint32) uint16
	WriteHalf(addr uint32, v uint16)
	ReadWord(addr uint32) uint32
	WriteWord(addr uint32, v uint32)
	ReadWordRotated(addr uint32) uint32
	ReadHalfRotate(addr uint32) uint32
	ReadHalfSigned(addr uint32) uint32
}

// Ticker advances the scheduler by the instruction's cycle cost.
type Ticker interface {
	Tick(cycles uint64)
}

// IRQLine reports whether the interrupt controller currently asserts IRQ
// (IME set and IE&IF nonzero) and, separately, whether any enabled
// interrupt is pending regardless of IME (used to wake from halt).
type IRQLine interface {
	Asserted() bool
	Pending() bool
}

// bank indices into the per-mode storage arrays.
const (
	bankUSR = iota
	bankFIQ
	bankIRQ
	bankSVC
	bankABT
	bankUND
	bankCount
)

func bankIndex(mode byte) int {
	switch mode {
	case ModeFIQ:
		return bankFIQ
	case ModeIRQ:
		return bankIRQ
	case ModeSVC:
		return bankSVC
	case ModeABT:
		return bankABT
	case ModeUND:
		return bankUND
	default: // USR, SYS
		return bankUSR
	}
}

// CPU holds the full ARM7TDMI register/pipeline state.
type CPU struct {
	r    [16]uint32 // active register file, R0-R15 (R15 holds the pipeline lookahead value pc() returns)
	cpsr uint32

	bankR13 [bankCount]uint32
	bankR14 [bankCount]uint32
	spsr    [bankCount]uint32 // spsr[bankUSR] unused (USR/SYS have no SPSR)

	fiqR8_12 [5]uint32 // banked R8-R12 for FIQ mode
	usrR8_12 [5]uint32 // R8-R12 shared by every other mode

	pipeline [2]uint32
	filled   int

	halted bool

	bus    Bus
	ticker Ticker
	irq    IRQLine
}

// New returns a CPU wired to bus, ticker, and irq, reset to GBA power-on
// state (SYS mode, ARM state, banked SP seed values, R15 at the cartridge
// entry point with the pipeline flushed).
func New(bus Bus, ticker Ticker, irq IRQLine) *CPU {
	c := &CPU{bus: bus, ticker: ticker, irq: irq}
	c.Reset()
	return c
}

// Reset restores power-on state.
func (c *CPU) Reset() {
	c.r = [16]uint32{}
	c.cpsr = uint32(ModeSYS) | flagI | flagF
	c.bankR13[bankUSR] = 0x03007F00
	c.bankR13[bankIRQ] = 0x03007FA0
	c.bankR13[bankSVC] = 0x03007FE0
	c.r[13] = c.bankR13[bankUSR]
	c.halted = false
	c.setPCFlush(0x08000000)
}

// mode returns the current CPSR mode field.
func (c *CPU) mode() byte { return byte(c.cpsr & modeMask) }

// Thumb reports whether the CPU is executing in THUMB state.
func (c *CPU) Thumb() bool { return c.cpsr&flagT != 0 }

// CPSR returns the raw CPSR value.
func (c *CPU) CPSR() uint32 { return c.cpsr }

// SetCPSR writes the raw CPSR, performing a mode switch if the mode field
// changed. Invalid mode bits are left as written (GBA software never writes
// an invalid mode in practice; the core neither panics nor repairs it).
func (c *CPU) SetCPSR(v uint32) {
	newMode := byte(v & modeMask)
	if newMode != c.mode() {
		c.switchMode(newMode)
	}
	c.cpsr = v
}

// R returns general-purpose register n (0-15), resolving banked storage for
// the current mode. R15 reads with pipeline lookahead (pc()).
func (c *CPU) R(n byte) uint32 {
	if n == 15 {
		return c.pc()
	}
	if c.mode() == ModeFIQ && n >= 8 && n <= 12 {
		return c.fiqR8_12[n-8]
	}
	return c.r[n]
}

// SetR writes general-purpose register n. Writing R15 flushes the pipeline.
func (c *CPU) SetR(n byte, v uint32) {
	if n == 15 {
		c.setPCFlush(v)
		return
	}
	if c.mode() == ModeFIQ && n >= 8 && n <= 12 {
		c.fiqR8_12[n-8] = v
		return
	}
	c.r[n] = v
}

// pc returns R15 as architecturally visible: 8 bytes ahead of the executing
// ARM instruction, 4 ahead in THUMB.
func (c *CPU) pc() uint32 { return c.r[15] }

// setPCFlush writes a new PC, aligns it to the instruction-size boundary,
// and flushes the prefetch pipeline so the next two fetches refill it from
// the new address.
func (c *CPU) setPCFlush(addr uint32) {
	step := uint32(4)
	if c.Thumb() {
		addr &^= 1
		step = 2
	} else {
		addr &^= 3
	}
	c.filled = 0
	c.r[15] = addr + 2*step
}

// SPSR returns the saved PSR for the current mode, or 0 in USR/SYS where no
// SPSR bank exists.
func (c *CPU) SPSR() uint32 {
	idx := bankIndex(c.mode())
	if idx == bankUSR {
		return 0
	}
	return c.spsr[idx]
}

// SetSPSR writes the saved PSR for the current mode; a no-op in USR/SYS.
func (c *CPU) SetSPSR(v uint32) {
	idx := bankIndex(c.mode())
	if idx == bankUSR {
		return
	}
	c.spsr[idx] = v
}

// switchMode swaps the FIQ R8-R12 bank if FIQ is entered or left, banks out
// R13/R14 for the old mode and banks in R13/R14 for the new mode. SPSR is
// addressed directly by mode (bankIndex), so no separate save/load step is
// needed for it.
func (c *CPU) switchMode(newMode byte) {
	oldMode := c.mode()
	if oldMode == newMode {
		return
	}
	if (oldMode == ModeFIQ) != (newMode == ModeFIQ) {
		if oldMode == ModeFIQ {
			copy(c.fiqR8_12[:], c.r[8:13])
			copy(c.r[8:13], c.usrR8_12[:])
		} else {
			copy(c.usrR8_12[:], c.r[8:13])
			copy(c.r[8:13], c.fiqR8_12[:])
		}
	}
	c.bankR13[bankIndex(oldMode)] = c.r[13]
	c.bankR14[bankIndex(oldMode)] = c.r[14]
	c.r[13] = c.bankR13[bankIndex(newMode)]
	c.r[14] = c.bankR14[bankIndex(newMode)]
	c.cpsr = (c.cpsr &^ modeMask) | uint32(newMode)
}

// Halted reports whether the CPU is currently halted.
func (c *CPU) Halted() bool { return c.halted }

// Halt puts the CPU to sleep until an enabled interrupt becomes pending.
func (c *CPU) Halt() { c.halted = true }

// Step executes exactly one instruction (or, if halted with nothing
// pending, advances time without executing one). Returns the number of
// cycles charged to the scheduler.
func (c *CPU) Step() int {
	if c.halted {
		if c.irq != nil && c.irq.Pending() {
			c.halted = false
		} else {
			c.ticker.Tick(1)
			return 1
		}
	}

	if c.irq != nil && c.cpsr&flagI == 0 && c.irq.Asserted() {
		cycles := c.enterIRQ()
		c.ticker.Tick(uint64(cycles))
		return cycles
	}

	c.fillPipeline()
	instr := c.pipeline[0]
	c.pipeline[0] = c.pipeline[1]
	c.filled--

	var cycles int
	if c.Thumb() {
		cycles = c.execThumb(uint16(instr))
	} else {
		cycles = c.execARM(instr)
	}
	// An instruction that wrote R15 flushed the pipeline (filled == 0);
	// otherwise R15 moves on to the next sequential instruction's lookahead.
	if c.filled == 1 {
		if c.Thumb() {
			c.r[15] += 2
		} else {
			c.r[15] += 4
		}
	}
	if cycles <= 0 {
		cycles = 1
	}
	c.ticker.Tick(uint64(cycles))
	return cycles
}

// fillPipeline fetches from the bus until the 2-entry queue is full again.
// Fetch addresses follow the pipeline convention: entries are fetched at
// successive PC-word_size offsets behind the current R15 lookahead value.
func (c *CPU) fillPipeline() {
	step := uint32(4)
	if c.Thumb() {
		step = 2
	}
	for c.filled < 2 {
		addr := c.r[15] - step*uint32(2-c.filled)
		var word uint32
		if c.Thumb() {
			word = uint32(c.bus.ReadHalf(addr))
		} else {
			word = c.bus.ReadWord(addr)
		}
		c.pipeline[c.filled] = word
		c.filled++
	}
}

// enterIRQ runs the IRQ entry procedure: bank into IRQ mode, save the old
// CPSR to SPSR_irq, set the link register, mask further IRQs, and vector to
// the IRQ handler.
func (c *CPU) enterIRQ() int {
	offset := uint32(4)
	if c.Thumb() {
		offset = 0
	}
	lr := c.r[15] - offset
	spsrOld := c.cpsr
	c.switchMode(ModeIRQ)
	c.SetSPSR(spsrOld)
	c.r[14] = lr
	c.cpsr &^= flagT
	c.cpsr |= flagI
	c.setPCFlush(0x00000018)
	return 3
}

// barrel shifter: LSL/LSR/ASR/ROR with the mandatory edge cases.
// immediateForm distinguishes the #0-amount semantics for
// immediate shifts (LSR/ASR #0 mean #32; ROR #0 means RRX) from the
// register-form semantics (#0 amount means "value unchanged").
func shiftLSL(value uint32, amount byte, carryIn bool) (uint32, bool) {
	switch {
	case amount == 0:
		return value, carryIn
	case amount < 32:
		return value << amount, (value>>(32-amount))&1 != 0
	case amount == 32:
		return 0, value&1 != 0
	default:
		return 0, false
	}
}

func shiftLSR(value uint32, amount byte, immediateForm bool, carryIn bool) (uint32, bool) {
	if amount == 0 {
		if immediateForm {
			return 0, value&0x80000000 != 0
		}
		return value, carryIn
	}
	switch {
	case amount < 32:
		return value >> amount, (value>>(amount-1))&1 != 0
	case amount == 32:
		return 0, value&0x80000000 != 0
	default:
		return 0, false
	}
}

func shiftASR(value uint32, amount byte, immediateForm bool, carryIn bool) (uint32, bool) {
	if amount == 0 {
		if immediateForm {
			if value&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return value, carryIn
	}
	if amount >= 32 {
		amount = 32
	}
	res := uint32(int32(value) >> amount)
	var carryOut bool
	if amount == 32 {
		carryOut = value&0x80000000 != 0
	} else {
		carryOut = (value>>(amount-1))&1 != 0
	}
	return res, carryOut
}

func shiftROR(value uint32, amount byte, immediateForm bool, carryIn bool) (uint32, bool) {
	if amount == 0 {
		if immediateForm { // RRX
			res := (value >> 1) | boolToBit(carryIn)<<31
			return res, value&1 != 0
		}
		return value, carryIn
	}
	amount %= 32
	if amount == 0 {
		return value, value&0x80000000 != 0
	}
	res := bits.RotateLeft32(value, -int(amount))
	carryOut := (value>>(amount-1))&1 != 0
	return res, carryOut
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// arithmetic helpers computing 33-bit add/sub carry/overflow detection
// expressed with Go's native wrap-around semantics.
func addFlags(a, b uint32) (res uint32, n, z, cflag, v bool) {
	res = a + b
	cflag = res < a
	v = (^(a ^ b))&(b^res)&0x80000000 != 0
	n = res&0x80000000 != 0
	z = res == 0
	return
}

func adcFlags(a, b uint32, carryIn bool) (res uint32, n, z, cflag, v bool) {
	sum := uint64(a) + uint64(b) + uint64(boolToBit(carryIn))
	res = uint32(sum)
	cflag = sum > 0xFFFFFFFF
	v = (^(a ^ b))&(b^res)&0x80000000 != 0
	n = res&0x80000000 != 0
	z = res == 0
	return
}

func subFlags(a, b uint32) (res uint32, n, z, cflag, v bool) {
	res = a - b
	cflag = a >= b
	v = (a^b)&(a^res)&0x80000000 != 0
	n = res&0x80000000 != 0
	z = res == 0
	return
}

func sbcFlags(a, b uint32, carryIn bool) (res uint32, n, z, cflag, v bool) {
	borrow := uint32(1)
	if carryIn {
		borrow = 0
	}
	res = a - b - borrow
	cflag = uint64(a) >= uint64(b)+uint64(borrow)
	v = (a^b)&(a^res)&0x80000000 != 0
	n = res&0x80000000 != 0
	z = res == 0
	return
}

// conditionLUT[cond] has bit k set (k = NZCV nibble 0..15) when condition
// code cond evaluates true for that flag combination.
var conditionLUT [16]uint16

func init() {
	for nibble := 0; nibble < 16; nibble++ {
		n := nibble&0x8 != 0
		z := nibble&0x4 != 0
		cflag := nibble&0x2 != 0
		v := nibble&0x1 != 0
		results := [15]bool{
			z,               // 0000 EQ
			!z,              // 0001 NE
			cflag,           // 0010 CS/HS
			!cflag,          // 0011 CC/LO
			n,               // 0100 MI
			!n,              // 0101 PL
			v,               // 0110 VS
			!v,              // 0111 VC
			cflag && !z,     // 1000 HI
			!cflag || z,     // 1001 LS
			n == v,          // 1010 GE
			n != v,          // 1011 LT
			!z && n == v,    // 1100 GT
			z || n != v,     // 1101 LE
			true,            // 1110 AL
		}
		for cond := 0; cond < 15; cond++ {
			if results[cond] {
				conditionLUT[cond] |= 1 << uint(nibble)
			}
		}
		// 0b1111 (NV) is reserved; the LUT entry stays all-zero (never taken).
	}
}

func (c *CPU) checkCond(cond byte) bool {
	if cond == 0xF {
		return false
	}
	nibble := byte(c.cpsr >> 28)
	return (conditionLUT[cond]>>nibble)&1 != 0
}

// setNZ updates the N and Z flags from a logical-operation result (C/V left
// to the caller, matching how shifter carry and unaffected V are threaded
// through data-processing instructions).
func (c *CPU) setNZ(result uint32) {
	if result&0x80000000 != 0 {
		c.cpsr |= flagN
	} else {
		c.cpsr &^= flagN
	}
	if result == 0 {
		c.cpsr |= flagZ
	} else {
		c.cpsr &^= flagZ
	}
}

func (c *CPU) setC(v bool) {
	if v {
		c.cpsr |= flagC
	} else {
		c.cpsr &^= flagC
	}
}

func (c *CPU) setV(v bool) {
	if v {
		c.cpsr |= flagV
	} else {
		c.cpsr &^= flagV
	}
}

func (c *CPU) flagC() bool { return c.cpsr&flagC != 0 }
