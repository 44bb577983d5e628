package cpu

import "testing"

// fakeBus is a flat 64 KiB memory, addressed directly, enough to host a
// short program and exercise load/store instructions without the full
// memory map.
type fakeBus struct {
	mem [0x10000]byte
}

func (b *fakeBus) ReadByte(addr uint32) byte     { return b.mem[addr&0xFFFF] }
func (b *fakeBus) WriteByte(addr uint32, v byte) { b.mem[addr&0xFFFF] = v }
func (b *fakeBus) ReadHalf(addr uint32) uint16 {
	a := addr & 0xFFFF &^ 1
	return uint16(b.mem[a]) | uint16(b.mem[a+1])<<8
}
func (b *fakeBus) WriteHalf(addr uint32, v uint16) {
	a := addr & 0xFFFF &^ 1
	b.mem[a] = byte(v)
	b.mem[a+1] = byte(v >> 8)
}
func (b *fakeBus) ReadWord(addr uint32) uint32 {
	a := addr & 0xFFFF &^ 3
	return uint32(b.mem[a]) | uint32(b.mem[a+1])<<8 | uint32(b.mem[a+2])<<16 | uint32(b.mem[a+3])<<24
}
func (b *fakeBus) WriteWord(addr uint32, v uint32) {
	a := addr & 0xFFFF &^ 3
	b.mem[a] = byte(v)
	b.mem[a+1] = byte(v >> 8)
	b.mem[a+2] = byte(v >> 16)
	b.mem[a+3] = byte(v >> 24)
}
func (b *fakeBus) ReadWordRotated(addr uint32) uint32 { return b.ReadWord(addr) }
func (b *fakeBus) ReadHalfRotate(addr uint32) uint32  { return uint32(b.ReadHalf(addr)) }
func (b *fakeBus) ReadHalfSigned(addr uint32) uint32  { return uint32(int32(int16(b.ReadHalf(addr)))) }

func (b *fakeBus) putWordAt(addr uint32, v uint32) { b.WriteWord(addr, v) }
func (b *fakeBus) putHalfAt(addr uint32, v uint16) { b.WriteHalf(addr, v) }

type fakeTicker struct{ total uint64 }

func (t *fakeTicker) Tick(n uint64) { t.total += n }

type fakeIRQ struct {
	asserted bool
	pending  bool
}

func (f *fakeIRQ) Asserted() bool { return f.asserted }
func (f *fakeIRQ) Pending() bool  { return f.pending }

func newTestCPU() (*CPU, *fakeBus, *fakeTicker) {
	b := &fakeBus{}
	tk := &fakeTicker{}
	c := New(b, tk, &fakeIRQ{})
	return c, b, tk
}

func TestResetEntersSysModeAtCartEntry(t *testing.T) {
	c, _, _ := newTestCPU()
	if c.mode() != ModeSYS {
		t.Fatalf("mode after reset = %#x, want SYS", c.mode())
	}
	if c.Thumb() {
		t.Fatalf("reset should leave CPU in ARM state")
	}
	if got := c.R(15); got != 0x08000008 {
		t.Fatalf("R15 after reset = %#x, want 0x08000008 (entry+8 pipeline lookahead)", got)
	}
}

func TestBarrelShifterEdgeCases(t *testing.T) {
	cases := []struct {
		name        string
		fn          func() (uint32, bool)
		wantVal     uint32
		wantCarry   bool
	}{
		{"LSL#0 unchanged", func() (uint32, bool) { return shiftLSL(0xABCD1234, 0, true) }, 0xABCD1234, true},
		{"LSR#0 imm means #32", func() (uint32, bool) { return shiftLSR(0x80000000, 0, true, false) }, 0, true},
		{"LSR#32", func() (uint32, bool) { return shiftLSR(0x80000001, 32, false, false) }, 0, true},
		{"LSR#33 zero", func() (uint32, bool) { return shiftLSR(0xFFFFFFFF, 33, false, true) }, 0, false},
		{"ASR#0 imm means #32 all-ones", func() (uint32, bool) { return shiftASR(0x80000000, 0, true, false) }, 0xFFFFFFFF, true},
		{"ASR#31", func() (uint32, bool) { return shiftASR(0x80000000, 31, false, false) }, 0xFFFFFFFF, false},
		{"ASR#64 positive", func() (uint32, bool) { return shiftASR(0x7FFFFFFF, 64, false, false) }, 0, false},
		{"ROR#0 imm means RRX", func() (uint32, bool) { return shiftROR(0x00000001, 0, true, true) }, 0x80000000, true},
		{"ROR#32 unchanged value, carry=bit31", func() (uint32, bool) { return shiftROR(0x80000001, 32, false, false) }, 0x80000001, true},
	}
	for _, tc := range cases {
		v, carry := tc.fn()
		if v != tc.wantVal || carry != tc.wantCarry {
			t.Errorf("%s: got (%#x,%v), want (%#x,%v)", tc.name, v, carry, tc.wantVal, tc.wantCarry)
		}
	}
}

func TestConditionLUTCoversAllCodes(t *testing.T) {
	c, _, _ := newTestCPU()
	setFlags := func(n, z, cf, v bool) {
		c.cpsr &^= flagN | flagZ | flagC | flagV
		if n {
			c.cpsr |= flagN
		}
		if z {
			c.cpsr |= flagZ
		}
		if cf {
			c.cpsr |= flagC
		}
		if v {
			c.cpsr |= flagV
		}
	}
	setFlags(false, true, false, false) // Z set
	if !c.checkCond(0x0) { // EQ
		t.Fatalf("EQ should hold when Z set")
	}
	if c.checkCond(0x1) { // NE
		t.Fatalf("NE should not hold when Z set")
	}
	setFlags(false, false, false, false)
	if !c.checkCond(0xE) { // AL
		t.Fatalf("AL must always hold")
	}
	if c.checkCond(0xF) { // NV reserved
		t.Fatalf("NV (0xF) must never be taken")
	}
	setFlags(true, false, false, true) // N=1,V=1 -> GE true, LT false
	if !c.checkCond(0xA) {
		t.Fatalf("GE should hold when N==V")
	}
	if c.checkCond(0xB) {
		t.Fatalf("LT should not hold when N==V")
	}
}

func TestAddFlagsOverflowDetection(t *testing.T) {
	res, n, z, cflag, v := addFlags(0x7FFFFFFF, 1)
	if res != 0x80000000 || !n || z || cflag || !v {
		t.Fatalf("ADD overflow: res=%#x n=%v z=%v c=%v v=%v", res, n, z, cflag, v)
	}
}

func TestSubFlagsNoBorrowSetsCarry(t *testing.T) {
	res, n, z, cflag, v := subFlags(5, 3)
	if res != 2 || n || z || !cflag || v {
		t.Fatalf("SUB 5-3: res=%#x n=%v z=%v c=%v v=%v", res, n, z, cflag, v)
	}
	_, _, _, cflag2, _ := subFlags(3, 5)
	if cflag2 {
		t.Fatalf("SUB with borrow should clear carry (3-5)")
	}
}

func TestThumbMovImmediateThenLSL(t *testing.T) {
	c, b, _ := newTestCPU()
	c.SetCPSR(c.cpsr | flagT)
	c.setPCFlush(0x08000000)
	// MOV R1,#5 ; LSL R1,R1,#2  -> R1 = 20
	b.putHalfAt(0x08000000, 0x2105) // 001 00 001 00000101 = MOV r1,#5
	b.putHalfAt(0x08000002, 0x0089) // LSL r1,r1,#2 (000 00 00010 001 001)
	c.Step()
	if c.R(1) != 5 {
		t.Fatalf("after MOV r1,#5: r1=%d, want 5", c.R(1))
	}
	c.Step()
	if got := c.R(1); got != 20 {
		t.Fatalf("after LSL r1,r1,#2: r1=%d, want 20", got)
	}
	if c.cpsr&flagZ != 0 || c.cpsr&flagN != 0 {
		t.Fatalf("flags after LSL result=20 should have Z=0,N=0, cpsr=%#x", c.cpsr)
	}
}

func TestArmAddsSignedOverflowSetsNAndV(t *testing.T) {
	c, _, _ := newTestCPU()
	c.SetR(0, 0x7FFFFFFF)
	c.SetR(2, 1)
	// ADDS r1, r0, r2  (cond=AL, opcode ADD=0100, S=1, Rn=r0, Rd=r1, Rm=r2)
	instr := uint32(0xE0901002)
	cycles := c.execARM(instr)
	if cycles <= 0 {
		t.Fatalf("execARM returned non-positive cycles")
	}
	if c.R(1) != 0x80000000 {
		t.Fatalf("r1 = %#x, want 0x80000000", c.R(1))
	}
	if c.cpsr&flagN == 0 || c.cpsr&flagZ != 0 || c.cpsr&flagC != 0 || c.cpsr&flagV == 0 {
		t.Fatalf("ADDS overflow flags wrong: cpsr=%#x", c.cpsr)
	}
}

func TestModeSwitchBanksSPAndLR(t *testing.T) {
	c, _, _ := newTestCPU()
	c.SetR(13, 0x03007F00)
	c.switchMode(ModeIRQ)
	if c.mode() != ModeIRQ {
		t.Fatalf("mode after switch = %#x, want IRQ", c.mode())
	}
	if got := c.R(13); got != 0x03007FA0 {
		t.Fatalf("R13 in IRQ mode = %#x, want banked IRQ SP 0x03007FA0", got)
	}
	c.switchMode(ModeUSR)
	if got := c.R(13); got != 0x03007F00 {
		t.Fatalf("R13 back in USR mode = %#x, want preserved 0x03007F00", got)
	}
}

func TestIRQEntrySequence(t *testing.T) {
	c, _, tk := newTestCPU()
	c.setPCFlush(0x08000100)
	c.cpsr &^= flagI // IRQs must be unmasked for the core to take one
	irq := &fakeIRQ{asserted: true}
	c.irq = irq
	cpsrBefore := c.cpsr
	c.Step()
	if c.mode() != ModeIRQ {
		t.Fatalf("mode after IRQ entry = %#x, want IRQ", c.mode())
	}
	if c.cpsr&flagI == 0 {
		t.Fatalf("IRQ entry must set the I bit")
	}
	if c.cpsr&flagT != 0 {
		t.Fatalf("IRQ entry must clear the T bit (always enters ARM state)")
	}
	if c.SPSR() != cpsrBefore {
		t.Fatalf("SPSR_irq = %#x, want saved old cpsr %#x", c.SPSR(), cpsrBefore)
	}
	wantLR := uint32(0x08000100 - 4)
	if c.r[14] != wantLR {
		t.Fatalf("LR_irq = %#x, want %#x", c.r[14], wantLR)
	}
	if c.R(15) != 0x18+8 {
		t.Fatalf("R15 after IRQ vector fetch = %#x, want %#x", c.R(15), 0x18+8)
	}
	if tk.total == 0 {
		t.Fatalf("IRQ entry should consume scheduler cycles")
	}
}

func TestHaltWakesOnPendingRegardlessOfIME(t *testing.T) {
	c, _, tk := newTestCPU()
	c.Halt()
	irq := &fakeIRQ{asserted: false, pending: true}
	c.irq = irq
	c.Step()
	if c.Halted() {
		t.Fatalf("CPU should wake when an enabled interrupt is pending, even if IME is clear")
	}
	if tk.total == 0 {
		t.Fatalf("a step (halted or woken) should still advance the scheduler")
	}
}

func TestHaltStaysAsleepWithNothingPending(t *testing.T) {
	c, _, tk := newTestCPU()
	c.Halt()
	c.Step()
	if !c.Halted() {
		t.Fatalf("CPU should remain halted with nothing pending")
	}
	if tk.total != 1 {
		t.Fatalf("a halted step with nothing pending ticks exactly 1 cycle, got %d", tk.total)
	}
}

func TestArmDataTransferLoadStoreRoundTrip(t *testing.T) {
	c, b, _ := newTestCPU()
	c.SetR(0, 0x03000000)
	c.SetR(1, 0xCAFEBABE)
	// STR r1, [r0]
	execSingleDataTransfer(c, 0xE5801000)
	if got := b.ReadWord(0x03000000); got != 0xCAFEBABE {
		t.Fatalf("STR result = %#x, want 0xCAFEBABE", got)
	}
	// LDR r2, [r0]
	execSingleDataTransfer(c, 0xE5902000)
	if got := c.R(2); got != 0xCAFEBABE {
		t.Fatalf("LDR result = %#x, want 0xCAFEBABE", got)
	}
}
