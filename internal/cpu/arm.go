package cpu

// ARM-state decode and execution: the 4096-entry table indexed by
// ((instr>>16)&0xFF0)|((instr>>4)&0xF) (bits 27..20 and 7..4), populated at
// init with a handler per instruction class.

type armHandler func(c *CPU, instr uint32) int

var armTable [4096]armHandler

func init() {
	for key := 0; key < 4096; key++ {
		armTable[key] = classifyARM(uint16(key))
	}
}

// classifyARM maps a decode key to the handler for its instruction class,
// following the standard ARMv4T bit layout. The Open Question on sh==0b00
// in halfword transfers (an encoding overlap with Single Data Swap) is
// resolved by routing it to Single Data Swap, matching real ARM7TDMI
// silicon rather than treating it as a no-op.
func classifyARM(key uint16) armHandler {
	top8 := byte(key >> 4)
	low4 := byte(key & 0xF)

	switch {
	case top8&0xFC == 0x00 && low4 == 0x9:
		return execMultiply
	case top8&0xF8 == 0x08 && low4 == 0x9:
		return execMultiplyLong
	case top8&0xFB == 0x10 && low4 == 0x9:
		return execSingleDataSwap
	case top8 == 0x12 && low4 == 0x1:
		return execBranchExchange
	case top8&0xE0 == 0x00 && low4&0x9 == 0x9 && low4 != 0x9:
		return execHalfwordTransfer
	case top8&0xFB == 0x10 && low4&0x9 == 0x9:
		// MRS/MSR region overlapping halfword-transfer bit pattern with
		// S=0,H=0 (the sh==0b00 case) resolves to Single Data Swap above;
		// any other low4 here is the PSR transfer's register-operand form.
		return execPSRTransfer
	case top8&0xF9 == 0x10:
		return execPSRTransfer
	case top8&0xFB == 0x32: // MSR immediate
		return execPSRTransfer
	case top8&0xE0 == 0x00:
		return execDataProcessing
	case top8&0xE0 == 0x20:
		return execDataProcessing
	case top8&0xE0 == 0x40, top8&0xE0 == 0x60:
		if top8&0xE0 == 0x60 && low4&0x1 == 0x1 {
			return execUndefined
		}
		return execSingleDataTransfer
	case top8&0xE0 == 0x80:
		return execBlockDataTransfer
	case top8&0xE0 == 0xA0:
		return execBranch
	case top8&0xF0 == 0xF0:
		return execSoftwareInterrupt
	default:
		return execUndefined
	}
}

func (c *CPU) execARM(instr uint32) int {
	cond := byte(instr >> 28)
	if !c.checkCond(cond) {
		return 1
	}
	key := uint16((instr>>16)&0xFF0) | uint16((instr>>4)&0xF)
	return armTable[key](c, instr)
}

func armOperand2(c *CPU, instr uint32) (val uint32, carryOut bool) {
	carryIn := c.flagC()
	if instr&(1<<25) != 0 { // immediate
		imm := instr & 0xFF
		rot := byte((instr >> 8) & 0xF) * 2
		if rot == 0 {
			return imm, carryIn
		}
		return shiftROR(imm, rot, true, carryIn)
	}
	rm := c.R(byte(instr & 0xF))
	shiftType := byte((instr >> 5) & 0x3)
	var amount byte
	regForm := instr&(1<<4) != 0
	if regForm {
		rs := c.R(byte((instr >> 8) & 0xF))
		amount = byte(rs & 0xFF)
		if byte(instr&0xF) == 15 {
			rm += 4 // PC reads 12 ahead in this addressing mode when used as Rm with register shift
		}
	} else {
		amount = byte((instr >> 7) & 0x1F)
	}
	switch shiftType {
	case 0:
		return shiftLSL(rm, amount, carryIn)
	case 1:
		return shiftLSR(rm, amount, !regForm, carryIn)
	case 2:
		return shiftASR(rm, amount, !regForm, carryIn)
	default:
		return shiftROR(rm, amount, !regForm, carryIn)
	}
}

func execDataProcessing(c *CPU, instr uint32) int {
	opcode := (instr >> 21) & 0xF
	setFlags := instr&(1<<20) != 0
	rn := byte((instr >> 16) & 0xF)
	rd := byte((instr >> 12) & 0xF)
	op2, shiftCarry := armOperand2(c, instr)
	rnVal := c.R(rn)

	var res uint32
	var n, z, cflag, v bool
	logical := false

	switch opcode {
	case 0x0: // AND
		res = rnVal & op2
		logical = true
	case 0x1: // EOR
		res = rnVal ^ op2
		logical = true
	case 0x2: // SUB
		res, n, z, cflag, v = subFlags(rnVal, op2)
	case 0x3: // RSB
		res, n, z, cflag, v = subFlags(op2, rnVal)
	case 0x4: // ADD
		res, n, z, cflag, v = addFlags(rnVal, op2)
	case 0x5: // ADC
		res, n, z, cflag, v = adcFlags(rnVal, op2, c.flagC())
	case 0x6: // SBC
		res, n, z, cflag, v = sbcFlags(rnVal, op2, c.flagC())
	case 0x7: // RSC
		res, n, z, cflag, v = sbcFlags(op2, rnVal, c.flagC())
	case 0x8: // TST
		res = rnVal & op2
		logical = true
	case 0x9: // TEQ
		res = rnVal ^ op2
		logical = true
	case 0xA: // CMP
		res, n, z, cflag, v = subFlags(rnVal, op2)
	case 0xB: // CMN
		res, n, z, cflag, v = addFlags(rnVal, op2)
	case 0xC: // ORR
		res = rnVal | op2
		logical = true
	case 0xD: // MOV
		res = op2
		logical = true
	case 0xE: // BIC
		res = rnVal &^ op2
		logical = true
	case 0xF: // MVN
		res = ^op2
		logical = true
	}
	_, _ = n, z

	isTestOnly := opcode == 0x8 || opcode == 0x9 || opcode == 0xA || opcode == 0xB
	if !isTestOnly {
		c.SetR(rd, res)
	}

	if setFlags {
		if rd == 15 && !isTestOnly {
			// Writing CPSR from SPSR is the documented side effect of an
			// S-bit data-processing instruction targeting R15.
			c.SetCPSR(c.SPSR())
		} else {
			if logical {
				c.setNZ(res)
				c.setC(shiftCarry)
			} else {
				c.setNZ(res)
				c.setC(cflag)
				c.setV(v)
			}
		}
	}

	if rd == 15 && !isTestOnly {
		return 3
	}
	return 1
}

func execPSRTransfer(c *CPU, instr uint32) int {
	useSPSR := instr&(1<<22) != 0
	if instr&(1<<21) == 0 { // MRS
		rd := byte((instr >> 12) & 0xF)
		if useSPSR {
			c.SetR(rd, c.SPSR())
		} else {
			c.SetR(rd, c.cpsr)
		}
		return 1
	}
	// MSR
	var mask uint32
	if instr&(1<<19) != 0 {
		mask |= 0xFF000000 // flags field
	}
	if instr&(1<<16) != 0 {
		mask |= 0x000000FF // control field (mode/T/I/F)
	}
	var operand uint32
	if instr&(1<<25) != 0 {
		imm := instr & 0xFF
		rot := byte((instr>>8)&0xF) * 2
		operand, _ = shiftROR(imm, rot, true, c.flagC())
	} else {
		operand = c.R(byte(instr & 0xF))
	}
	if useSPSR {
		c.SetSPSR((c.SPSR() &^ mask) | (operand & mask))
	} else {
		c.SetCPSR((c.cpsr &^ mask) | (operand & mask))
	}
	return 1
}

func execMultiply(c *CPU, instr uint32) int {
	accumulate := instr&(1<<21) != 0
	setFlags := instr&(1<<20) != 0
	rd := byte((instr >> 16) & 0xF)
	rn := byte((instr >> 12) & 0xF)
	rs := byte((instr >> 8) & 0xF)
	rm := byte(instr & 0xF)

	res := c.R(rm) * c.R(rs)
	if accumulate {
		res += c.R(rn)
	}
	c.SetR(rd, res)
	if setFlags {
		c.setNZ(res)
	}
	return 2
}

func execMultiplyLong(c *CPU, instr uint32) int {
	signed := instr&(1<<22) != 0
	accumulate := instr&(1<<21) != 0
	setFlags := instr&(1<<20) != 0
	rdHi := byte((instr >> 16) & 0xF)
	rdLo := byte((instr >> 12) & 0xF)
	rs := byte((instr >> 8) & 0xF)
	rm := byte(instr & 0xF)

	var result uint64
	if signed {
		result = uint64(int64(int32(c.R(rm))) * int64(int32(c.R(rs))))
	} else {
		result = uint64(c.R(rm)) * uint64(c.R(rs))
	}
	if accumulate {
		result += uint64(c.R(rdHi))<<32 | uint64(c.R(rdLo))
	}
	c.SetR(rdLo, uint32(result))
	c.SetR(rdHi, uint32(result>>32))
	if setFlags {
		c.setNZ(uint32(result >> 32))
		if result == 0 {
			c.cpsr |= flagZ
		}
	}
	return 3
}

func execSingleDataSwap(c *CPU, instr uint32) int {
	byteSwap := instr&(1<<22) != 0
	rn := byte((instr >> 16) & 0xF)
	rd := byte((instr >> 12) & 0xF)
	rm := byte(instr & 0xF)
	addr := c.R(rn)
	if byteSwap {
		old := c.bus.ReadByte(addr)
		c.bus.WriteByte(addr, byte(c.R(rm)))
		c.SetR(rd, uint32(old))
	} else {
		old := c.bus.ReadWordRotated(addr)
		c.bus.WriteWord(addr, c.R(rm))
		c.SetR(rd, old)
	}
	return 4
}

func execBranchExchange(c *CPU, instr uint32) int {
	target := c.R(byte(instr & 0xF))
	if target&1 != 0 {
		c.cpsr |= flagT
	} else {
		c.cpsr &^= flagT
	}
	c.setPCFlush(target)
	return 3
}

func execHalfwordTransfer(c *CPU, instr uint32) int {
	preIndex := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	immediateOffset := instr&(1<<22) != 0
	writeBack := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := byte((instr >> 16) & 0xF)
	rd := byte((instr >> 12) & 0xF)
	sh := byte((instr >> 5) & 0x3)

	var offset uint32
	if immediateOffset {
		offset = ((instr >> 4) & 0xF0) | (instr & 0xF)
	} else {
		offset = c.R(byte(instr & 0xF))
	}

	base := c.R(rn)
	addr := base
	if preIndex {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		var val uint32
		switch sh {
		case 1: // unsigned halfword
			val = c.bus.ReadHalfRotate(addr)
		case 2: // signed byte
			val = uint32(int32(int8(c.bus.ReadByte(addr))))
		case 3: // signed halfword
			val = c.bus.ReadHalfSigned(addr)
		}
		c.SetR(rd, val)
	} else {
		c.bus.WriteHalf(addr, uint16(c.R(rd)))
	}

	if !preIndex {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		c.SetR(rn, addr)
	} else if writeBack {
		c.SetR(rn, addr)
	}
	return 2
}

func execSingleDataTransfer(c *CPU, instr uint32) int {
	immediateOffset := instr&(1<<25) == 0
	preIndex := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	byteTransfer := instr&(1<<22) != 0
	writeBack := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := byte((instr >> 16) & 0xF)
	rd := byte((instr >> 12) & 0xF)

	var offset uint32
	if immediateOffset {
		offset = instr & 0xFFF
	} else {
		offset, _ = armOperand2ShiftOnly(c, instr)
	}

	base := c.R(rn)
	addr := base
	if preIndex {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
	}

	if load {
		if byteTransfer {
			c.SetR(rd, uint32(c.bus.ReadByte(addr)))
		} else {
			c.SetR(rd, c.bus.ReadWordRotated(addr))
		}
	} else {
		if byteTransfer {
			c.bus.WriteByte(addr, byte(c.R(rd)))
		} else {
			c.bus.WriteWord(addr, c.R(rd))
		}
	}

	if !preIndex {
		if up {
			addr = base + offset
		} else {
			addr = base - offset
		}
		c.SetR(rn, addr)
	} else if writeBack {
		c.SetR(rn, addr)
	}
	if rd == 15 && load {
		return 5
	}
	return 3
}

// armOperand2ShiftOnly resolves the register-offset shifted-by-immediate
// form used by Single Data Transfer (never the register-shift form, which
// is unpredictable in this addressing mode on real ARM7TDMI).
func armOperand2ShiftOnly(c *CPU, instr uint32) (uint32, bool) {
	rm := c.R(byte(instr & 0xF))
	shiftType := byte((instr >> 5) & 0x3)
	amount := byte((instr >> 7) & 0x1F)
	carryIn := c.flagC()
	switch shiftType {
	case 0:
		return shiftLSL(rm, amount, carryIn)
	case 1:
		return shiftLSR(rm, amount, true, carryIn)
	case 2:
		return shiftASR(rm, amount, true, carryIn)
	default:
		return shiftROR(rm, amount, true, carryIn)
	}
}

func execBlockDataTransfer(c *CPU, instr uint32) int {
	preIndex := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	psrForceUser := instr&(1<<22) != 0
	writeBack := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := byte((instr >> 16) & 0xF)
	list := uint16(instr & 0xFFFF)

	count := 0
	for i := 0; i < 16; i++ {
		if list&(1<<uint(i)) != 0 {
			count++
		}
	}
	base := c.R(rn)
	startAddr := base
	if !up {
		startAddr = base - uint32(count)*4
		if preIndex {
			startAddr += 4
		}
	} else if preIndex {
		startAddr += 4
	}

	addr := startAddr
	regRead := func(n byte) uint32 {
		if psrForceUser && n < 15 {
			return c.usrRegRaw(n)
		}
		return c.R(n)
	}
	regWrite := func(n byte, v uint32) {
		if psrForceUser && n < 15 {
			c.setUsrRegRaw(n, v)
			return
		}
		c.SetR(n, v)
	}

	for i := byte(0); i < 16; i++ {
		if list&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			regWrite(i, c.bus.ReadWord(addr))
		} else {
			c.bus.WriteWord(addr, regRead(i))
		}
		addr += 4
	}

	if writeBack {
		if up {
			c.SetR(rn, base+uint32(count)*4)
		} else {
			c.SetR(rn, base-uint32(count)*4)
		}
	}
	if load && list&(1<<15) != 0 && psrForceUser {
		c.SetCPSR(c.SPSR())
	}
	return 2 + count
}

// usrRegRaw/setUsrRegRaw access the USR-bank R8-R12 directly, used by
// LDM/STM's "force user bank" addressing mode (S-bit set, R15 absent from
// the list) regardless of the CPU's actual current mode.
func (c *CPU) usrRegRaw(n byte) uint32 {
	if n >= 8 && n <= 12 && c.mode() == ModeFIQ {
		return c.usrR8_12[n-8]
	}
	return c.r[n]
}

func (c *CPU) setUsrRegRaw(n byte, v uint32) {
	if n >= 8 && n <= 12 && c.mode() == ModeFIQ {
		c.usrR8_12[n-8] = v
		return
	}
	c.r[n] = v
}

func execBranch(c *CPU, instr uint32) int {
	link := instr&(1<<24) != 0
	offset := instr & 0xFFFFFF
	if offset&0x800000 != 0 {
		offset |= 0xFF000000
	}
	offset <<= 2
	target := c.pc() + offset
	if link {
		c.SetR(14, c.r[15]-4)
	}
	c.setPCFlush(target)
	return 3
}

func execSoftwareInterrupt(c *CPU, instr uint32) int {
	lr := c.r[15] - 4
	spsrOld := c.cpsr
	c.switchMode(ModeSVC)
	c.SetSPSR(spsrOld)
	c.r[14] = lr
	c.cpsr &^= flagT
	c.cpsr |= flagI
	c.setPCFlush(0x00000008)
	return 3
}

func execUndefined(c *CPU, instr uint32) int {
	lr := c.r[15] - 4
	spsrOld := c.cpsr
	c.switchMode(ModeUND)
	c.SetSPSR(spsrOld)
	c.r[14] = lr
	c.cpsr &^= flagT
	c.cpsr |= flagI
	c.setPCFlush(0x00000004)
	return 3
}
