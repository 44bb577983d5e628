// Package cart models a GBA cartridge: a flat, linearly-addressed ROM (up to
// 32 MiB, unlike DMG's bank-switched 32 KiB windows) plus an auto-detected
// backup storage region (SRAM/Flash/EEPROM), exposed to the Bus as ROM reads
// at 0x08000000-0x0DFFFFFF and backup reads/writes at 0x0E000000-0x0FFFFFFF.
package cart

import "bytes"

// BackupKind identifies the detected backup storage variant.
type BackupKind int

const (
	BackupNone BackupKind = iota
	BackupSRAM
	BackupFlash64K
	BackupFlash128K
	BackupEEPROM
)

// backupIDs lists the ASCII identifier strings real GBA ROMs embed to tell
// a backup-memory-sizing linker (and, historically, flash-card writers)
// which backend they expect. Detection scans for the first match, which is
// the same heuristic real-world GBA emulators use in lieu of header metadata
// (the GBA header has no backup-type field).
var backupIDs = []struct {
	id   string
	kind BackupKind
}{
	{"EEPROM_V", BackupEEPROM},
	{"SRAM_V", BackupSRAM},
	{"FLASH512_V", BackupFlash64K},
	{"FLASH1M_V", BackupFlash128K},
	{"FLASH_V", BackupFlash64K},
}

func detectBackup(rom []byte) BackupKind {
	for _, b := range backupIDs {
		if bytes.Contains(rom, []byte(b.id)) {
			return b.kind
		}
	}
	return BackupNone
}

func backupSize(kind BackupKind) int {
	switch kind {
	case BackupSRAM:
		return 32 * 1024
	case BackupFlash64K:
		return 64 * 1024
	case BackupFlash128K:
		return 128 * 1024
	case BackupEEPROM:
		return 8 * 1024
	default:
		return 0
	}
}

// Cartridge is the Bus-facing view of a loaded GBA cartridge.
type Cartridge struct {
	rom    []byte
	backup []byte
	kind   BackupKind
	Header *Header
}

// New constructs a Cartridge from ROM bytes, auto-detecting backup type and
// parsing the header. A parse failure (ROM too small) is non-fatal: the
// cartridge is still usable for ROM reads, just without header metadata.
func New(rom []byte) *Cartridge {
	c := &Cartridge{rom: rom}
	c.kind = detectBackup(rom)
	if n := backupSize(c.kind); n > 0 {
		c.backup = make([]byte, n)
		for i := range c.backup {
			c.backup[i] = 0xFF // erased flash/SRAM reads as all-ones
		}
	}
	if h, err := ParseHeader(rom); err == nil {
		c.Header = h
	}
	return c
}

// BackupKind reports the detected backup storage variant.
func (c *Cartridge) BackupKind() BackupKind { return c.kind }

// ReadROM returns the byte at ROM-relative addr, mirroring the ROM image
// across its size up to the 32 MiB cartridge window (real carts wire only
// as many address lines as their mask ROM needs, so the image repeats).
func (c *Cartridge) ReadROM(addr uint32) byte {
	if len(c.rom) == 0 {
		return 0
	}
	return c.rom[int(addr)%len(c.rom)]
}

// ReadBackup returns the byte at backup-relative addr, or 0xFF if no backup
// is present (open bus on real hardware reads as all-ones for flash/SRAM).
func (c *Cartridge) ReadBackup(addr uint32) byte {
	if len(c.backup) == 0 {
		return 0xFF
	}
	return c.backup[int(addr)%len(c.backup)]
}

// WriteBackup writes the byte at backup-relative addr. Writes to absent
// backup storage are silently ignored.
func (c *Cartridge) WriteBackup(addr uint32, v byte) {
	if len(c.backup) == 0 {
		return
	}
	c.backup[int(addr)%len(c.backup)] = v
}

// SaveBackup returns a copy of the backup region for persistence: just the
// cartridge SRAM/flash region, dumped as a raw byte blob.
func (c *Cartridge) SaveBackup() []byte {
	out := make([]byte, len(c.backup))
	copy(out, c.backup)
	return out
}

// LoadBackup restores a previously-saved backup blob. A size mismatch is
// tolerated by copying the overlapping prefix, so a dump taken before a
// backup-kind misdetection still loads without panicking.
func (c *Cartridge) LoadBackup(data []byte) {
	copy(c.backup, data)
}
