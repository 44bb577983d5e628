package cpu

// THUMB-state decode and execution: the 256-entry table indexed by the
// instruction's top byte (instr>>8), populated at init with a handler per
// format.

type thumbHandler func(c *CPU, instr uint16) int

var thumbTable [256]thumbHandler

func init() {
	for key := 0; key < 256; key++ {
		thumbTable[key] = classifyThumb(byte(key))
	}
}

func classifyThumb(top byte) thumbHandler {
	switch {
	case top>>5 == 0x0 && (top>>3)&0x3 != 0x3:
		return execMoveShifted
	case top>>3 == 0x3:
		return execAddSubtract
	case top>>5 == 0x1:
		return execMoveCmpAddSubImm
	case top>>2 == 0x10:
		return execALUOperations
	case top>>2 == 0x11:
		return execHiRegBX
	case top>>3 == 0x9:
		return execPCRelativeLoad
	case top>>4 == 0x5 && top&0x2 == 0:
		return execLoadStoreRegOffset
	case top>>4 == 0x5 && top&0x2 != 0:
		return execLoadStoreSignExtended
	case top>>5 == 0x3:
		return execLoadStoreImmOffset
	case top>>4 == 0x8:
		return execLoadStoreHalfword
	case top>>4 == 0x9:
		return execSPRelativeLoadStore
	case top>>4 == 0xA:
		return execLoadAddress
	case top == 0xB0:
		return execAddOffsetToSP
	case top>>4 == 0xB && (top>>1)&0x3 == 0x2:
		return execPushPop
	case top>>4 == 0xC:
		return execMultipleLoadStore
	case top>>4 == 0xD && top&0xF != 0xF:
		return execConditionalBranch
	case top == 0xDF:
		return execThumbSWI
	case top>>3 == 0x1C:
		return execUnconditionalBranch
	case top>>4 == 0xF:
		return execLongBranchLink
	default:
		return execThumbUndefined
	}
}

func (c *CPU) execThumb(instr uint16) int {
	return thumbTable[instr>>8](c, instr)
}

func execMoveShifted(c *CPU, instr uint16) int {
	op := (instr >> 11) & 0x3
	amount := byte((instr >> 6) & 0x1F)
	rs := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	carryIn := c.flagC()
	var res uint32
	var carryOut bool
	switch op {
	case 0:
		res, carryOut = shiftLSL(c.R(rs), amount, carryIn)
	case 1:
		res, carryOut = shiftLSR(c.R(rs), amount, true, carryIn)
	default:
		res, carryOut = shiftASR(c.R(rs), amount, true, carryIn)
	}
	c.SetR(rd, res)
	c.setNZ(res)
	c.setC(carryOut)
	return 1
}

func execAddSubtract(c *CPU, instr uint16) int {
	immediate := instr&(1<<10) != 0
	subtract := instr&(1<<9) != 0
	rs := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	var operand uint32
	if immediate {
		operand = uint32((instr >> 6) & 0x7)
	} else {
		operand = c.R(byte((instr >> 6) & 0x7))
	}
	rsVal := c.R(rs)
	var res uint32
	var n, z, cflag, v bool
	if subtract {
		res, n, z, cflag, v = subFlags(rsVal, operand)
	} else {
		res, n, z, cflag, v = addFlags(rsVal, operand)
	}
	c.SetR(rd, res)
	c.setNZ(res)
	_ = n
	c.setC(cflag)
	c.setV(v)
	_ = z
	return 1
}

func execMoveCmpAddSubImm(c *CPU, instr uint16) int {
	op := (instr >> 11) & 0x3
	rd := byte((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)
	rdVal := c.R(rd)
	var res uint32
	var n, z, cflag, v bool
	switch op {
	case 0: // MOV
		res = imm
		c.SetR(rd, res)
		c.setNZ(res)
		return 1
	case 1: // CMP
		res, n, z, cflag, v = subFlags(rdVal, imm)
	case 2: // ADD
		res, n, z, cflag, v = addFlags(rdVal, imm)
		c.SetR(rd, res)
	default: // SUB
		res, n, z, cflag, v = subFlags(rdVal, imm)
		c.SetR(rd, res)
	}
	c.setNZ(res)
	c.setC(cflag)
	c.setV(v)
	_ = n
	_ = z
	return 1
}

func execALUOperations(c *CPU, instr uint16) int {
	op := (instr >> 6) & 0xF
	rs := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	rdVal := c.R(rd)
	rsVal := c.R(rs)

	var res uint32
	var n, z, cflag, v bool
	logical := false
	writeBack := true

	switch op {
	case 0x0: // AND
		res = rdVal & rsVal
		logical = true
	case 0x1: // EOR
		res = rdVal ^ rsVal
		logical = true
	case 0x2: // LSL
		res, cflag = shiftLSL(rdVal, byte(rsVal), c.flagC())
		logical = true
	case 0x3: // LSR
		res, cflag = shiftLSR(rdVal, byte(rsVal), false, c.flagC())
		logical = true
	case 0x4: // ASR
		res, cflag = shiftASR(rdVal, byte(rsVal), false, c.flagC())
		logical = true
	case 0x5: // ADC
		res, n, z, cflag, v = adcFlags(rdVal, rsVal, c.flagC())
	case 0x6: // SBC
		res, n, z, cflag, v = sbcFlags(rdVal, rsVal, c.flagC())
	case 0x7: // ROR
		res, cflag = shiftROR(rdVal, byte(rsVal), false, c.flagC())
		logical = true
	case 0x8: // TST
		res = rdVal & rsVal
		logical = true
		writeBack = false
	case 0x9: // NEG
		res, n, z, cflag, v = subFlags(0, rsVal)
	case 0xA: // CMP
		res, n, z, cflag, v = subFlags(rdVal, rsVal)
		writeBack = false
	case 0xB: // CMN
		res, n, z, cflag, v = addFlags(rdVal, rsVal)
		writeBack = false
	case 0xC: // ORR
		res = rdVal | rsVal
		logical = true
	case 0xD: // MUL
		res = rdVal * rsVal
		logical = true
	case 0xE: // BIC
		res = rdVal &^ rsVal
		logical = true
	default: // MVN
		res = ^rsVal
		logical = true
	}

	if writeBack {
		c.SetR(rd, res)
	}
	c.setNZ(res)
	if logical {
		if op != 0x0 && op != 0x1 && op != 0x8 && op != 0xC && op != 0xD && op != 0xE && op != 0xF {
			c.setC(cflag) // shift-family ops update C from the shifter
		}
	} else {
		c.setC(cflag)
		c.setV(v)
	}
	_ = n
	_ = z
	return 1
}

func execHiRegBX(c *CPU, instr uint16) int {
	op := (instr >> 8) & 0x3
	h1 := instr&(1<<7) != 0
	h2 := instr&(1<<6) != 0
	rs := byte((instr>>3)&0x7) | boolToRegHi(h2)
	rd := byte(instr&0x7) | boolToRegHi(h1)

	switch op {
	case 0: // ADD
		c.SetR(rd, c.R(rd)+c.R(rs))
	case 1: // CMP
		res, n, z, cflag, v := subFlags(c.R(rd), c.R(rs))
		c.setNZ(res)
		c.setC(cflag)
		c.setV(v)
		_ = n
		_ = z
	case 2: // MOV
		c.SetR(rd, c.R(rs))
	default: // BX
		target := c.R(rs)
		if target&1 != 0 {
			c.cpsr |= flagT
		} else {
			c.cpsr &^= flagT
		}
		c.setPCFlush(target)
		return 3
	}
	if rd == 15 {
		return 3
	}
	return 1
}

func boolToRegHi(b bool) byte {
	if b {
		return 8
	}
	return 0
}

func execPCRelativeLoad(c *CPU, instr uint16) int {
	rd := byte((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	base := (c.pc() &^ 3) + imm
	c.SetR(rd, c.bus.ReadWordRotated(base))
	return 3
}

func execLoadStoreRegOffset(c *CPU, instr uint16) int {
	load := instr&(1<<11) != 0
	byteTransfer := instr&(1<<10) != 0
	ro := byte((instr >> 6) & 0x7)
	rb := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	addr := c.R(rb) + c.R(ro)
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
	return 2
}

func execLoadStoreSignExtended(c *CPU, instr uint16) int {
	hFlag := instr&(1<<11) != 0
	signExtend := instr&(1<<10) != 0
	ro := byte((instr >> 6) & 0x7)
	rb := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	addr := c.R(rb) + c.R(ro)

	switch {
	case !signExtend && !hFlag: // STRH
		c.bus.WriteHalf(addr, uint16(c.R(rd)))
	case !signExtend && hFlag: // LDRH
		c.SetR(rd, c.bus.ReadHalfRotate(addr))
	case signExtend && !hFlag: // LDSB
		c.SetR(rd, uint32(int32(int8(c.bus.ReadByte(addr)))))
	default: // LDSH
		c.SetR(rd, c.bus.ReadHalfSigned(addr))
	}
	return 2
}

func execLoadStoreImmOffset(c *CPU, instr uint16) int {
	byteTransfer := instr&(1<<12) != 0
	load := instr&(1<<11) != 0
	imm := uint32((instr >> 6) & 0x1F)
	rb := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	if !byteTransfer {
		imm *= 4
	}
	addr := c.R(rb) + imm
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
	return 2
}

func execLoadStoreHalfword(c *CPU, instr uint16) int {
	load := instr&(1<<11) != 0
	imm := uint32((instr>>6)&0x1F) * 2
	rb := byte((instr >> 3) & 0x7)
	rd := byte(instr & 0x7)
	addr := c.R(rb) + imm
	if load {
		c.SetR(rd, c.bus.ReadHalfRotate(addr))
	} else {
		c.bus.WriteHalf(addr, uint16(c.R(rd)))
	}
	return 2
}

func execSPRelativeLoadStore(c *CPU, instr uint16) int {
	load := instr&(1<<11) != 0
	rd := byte((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	addr := c.R(13) + imm
	if load {
		c.SetR(rd, c.bus.ReadWordRotated(addr))
	} else {
		c.bus.WriteWord(addr, c.R(rd))
	}
	return 2
}

func execLoadAddress(c *CPU, instr uint16) int {
	useSP := instr&(1<<11) != 0
	rd := byte((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) * 4
	var base uint32
	if useSP {
		base = c.R(13)
	} else {
		base = c.pc() &^ 3
	}
	c.SetR(rd, base+imm)
	return 1
}

func execAddOffsetToSP(c *CPU, instr uint16) int {
	negative := instr&(1<<7) != 0
	imm := uint32(instr&0x7F) * 4
	if negative {
		c.SetR(13, c.R(13)-imm)
	} else {
		c.SetR(13, c.R(13)+imm)
	}
	return 1
}

func execPushPop(c *CPU, instr uint16) int {
	load := instr&(1<<11) != 0
	includeExtra := instr&(1<<8) != 0
	list := instr & 0xFF

	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			count++
		}
	}
	if includeExtra {
		count++
	}

	if load { // POP
		addr := c.R(13)
		for i := byte(0); i < 8; i++ {
			if list&(1<<uint(i)) != 0 {
				c.SetR(i, c.bus.ReadWord(addr))
				addr += 4
			}
		}
		if includeExtra {
			c.setPCFlush(c.bus.ReadWord(addr))
			addr += 4
		}
		c.SetR(13, addr)
		if includeExtra {
			return 3
		}
		return 2
	}

	// PUSH
	addr := c.R(13) - uint32(count)*4
	c.SetR(13, addr)
	for i := byte(0); i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			c.bus.WriteWord(addr, c.R(i))
			addr += 4
		}
	}
	if includeExtra {
		c.bus.WriteWord(addr, c.R(14))
	}
	return 2
}

func execMultipleLoadStore(c *CPU, instr uint16) int {
	load := instr&(1<<11) != 0
	rb := byte((instr >> 8) & 0x7)
	list := instr & 0xFF

	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			count++
		}
	}

	addr := c.R(rb)
	for i := byte(0); i < 8; i++ {
		if list&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			c.SetR(i, c.bus.ReadWord(addr))
		} else {
			c.bus.WriteWord(addr, c.R(i))
		}
		addr += 4
	}
	c.SetR(rb, addr)
	return 2 + count
}

func execConditionalBranch(c *CPU, instr uint16) int {
	cond := byte((instr >> 8) & 0xF)
	if !c.checkCond(cond) {
		return 1
	}
	offset := int32(int8(byte(instr & 0xFF))) * 2
	c.setPCFlush(uint32(int32(c.pc()) + offset))
	return 3
}

func execThumbSWI(c *CPU, instr uint16) int {
	lr := c.r[15] - 2
	spsrOld := c.cpsr
	c.switchMode(ModeSVC)
	c.SetSPSR(spsrOld)
	c.r[14] = lr
	c.cpsr &^= flagT
	c.cpsr |= flagI
	c.setPCFlush(0x00000008)
	return 3
}

func execUnconditionalBranch(c *CPU, instr uint16) int {
	offset := instr & 0x7FF
	signed := int32(offset)
	if offset&0x400 != 0 {
		signed -= 0x800
	}
	c.setPCFlush(uint32(int32(c.pc()) + signed*2))
	return 3
}

// execLongBranchLink handles both halfwords of BL: the first (H=10) folds
// the upper 11 bits of the signed offset into LR relative to this
// instruction's PC lookahead; the second (H=11) adds the lower 11 bits
// (shifted left 1) to LR, sets the return address (odd, for THUMB) into LR,
// and branches.
func execLongBranchLink(c *CPU, instr uint16) int {
	low := instr&(1<<11) != 0
	offset := uint32(instr & 0x7FF)
	if !low {
		signed := int32(offset)
		if offset&0x400 != 0 {
			signed -= 0x800
		}
		c.r[14] = uint32(int32(c.pc()) + signed<<12)
		return 1
	}
	next := c.r[14] + offset<<1
	c.r[14] = (c.r[15] - 2) | 1
	c.setPCFlush(next)
	return 3
}

func execThumbUndefined(c *CPU, instr uint16) int {
	lr := c.r[15] - 2
	spsrOld := c.cpsr
	c.switchMode(ModeUND)
	c.SetSPSR(spsrOld)
	c.r[14] = lr
	c.cpsr &^= flagT
	c.cpsr |= flagI
	c.setPCFlush(0x00000004)
	return 3
}
