// Package mmio routes I/O addresses 0x04000000-0x040003FE to the
// component-owned register handler responsible for that range, synthesizing
// 16- and 32-bit accesses from byte handlers consistently in little-endian
// order.
package mmio

// RegionHandler is implemented by any component that owns a slice of the
// I/O register window. offset is relative to the handler's own registered
// range (its Register lo becomes offset 0), so a handler's internal layout
// never depends on where the Machine happens to mount it.
type RegionHandler interface {
	ReadByte(offset uint32) byte
	WriteByte(offset uint32, v byte)
}

type mapping struct {
	lo, hi uint32
	h      RegionHandler
}

// Registrar dispatches byte-granular I/O accesses to registered component
// handlers by address range, populated once at startup.
type Registrar struct {
	mappings []mapping
}

// New returns an empty Registrar.
func New() *Registrar { return &Registrar{} }

// Register binds the inclusive byte range [lo, hi] (within the 0x000-0x3FE
// I/O window) to h. Ranges must not overlap; later registrations are not
// checked against earlier ones since the caller fully controls the map.
func (r *Registrar) Register(lo, hi uint32, h RegionHandler) {
	r.mappings = append(r.mappings, mapping{lo: lo, hi: hi, h: h})
}

func (r *Registrar) find(offset uint32) (h RegionHandler, rel uint32) {
	for _, m := range r.mappings {
		if offset >= m.lo && offset <= m.hi {
			return m.h, offset - m.lo
		}
	}
	return nil, 0
}

// ReadByte returns the byte at offset, or 0 with ok=false if unmapped.
func (r *Registrar) ReadByte(offset uint32) (v byte, ok bool) {
	h, rel := r.find(offset)
	if h == nil {
		return 0, false
	}
	return h.ReadByte(rel), true
}

// WriteByte writes value at offset. Unmapped writes are silently ignored.
func (r *Registrar) WriteByte(offset uint32, value byte) (ok bool) {
	h, rel := r.find(offset)
	if h == nil {
		return false
	}
	h.WriteByte(rel, value)
	return true
}

// ReadHalf synthesizes a 16-bit little-endian read from two byte reads.
// Unmapped halves read back as 0.
func (r *Registrar) ReadHalf(offset uint32) uint16 {
	lo, _ := r.ReadByte(offset)
	hi, _ := r.ReadByte(offset + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteHalf synthesizes a 16-bit little-endian write from two byte writes.
func (r *Registrar) WriteHalf(offset uint32, value uint16) {
	r.WriteByte(offset, byte(value))
	r.WriteByte(offset+1, byte(value>>8))
}

// ReadWord synthesizes a 32-bit little-endian read from four byte reads.
func (r *Registrar) ReadWord(offset uint32) uint32 {
	b0, _ := r.ReadByte(offset)
	b1, _ := r.ReadByte(offset + 1)
	b2, _ := r.ReadByte(offset + 2)
	b3, _ := r.ReadByte(offset + 3)
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// WriteWord synthesizes a 32-bit little-endian write from four byte writes.
func (r *Registrar) WriteWord(offset uint32, value uint32) {
	r.WriteByte(offset, byte(value))
	r.WriteByte(offset+1, byte(value>>8))
	r.WriteByte(offset+2, byte(value>>16))
	r.WriteByte(offset+3, byte(value>>24))
}
