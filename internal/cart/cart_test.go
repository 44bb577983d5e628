package cart

import "testing"

func TestDetectBackupKind(t *testing.T) {
	cases := []struct {
		id   string
		kind BackupKind
	}{
		{"SRAM_Vxxx", BackupSRAM},
		{"FLASH_Vxxx", BackupFlash64K},
		{"FLASH512_Vxx", BackupFlash64K},
		{"FLASH1M_Vxx", BackupFlash128K},
		{"EEPROM_Vxxx", BackupEEPROM},
	}
	for _, c := range cases {
		rom := buildROM("T", "ABCE", 1024)
		rom = append(rom, []byte(c.id)...)
		cart := New(rom)
		if cart.BackupKind() != c.kind {
			t.Fatalf("%s: BackupKind() = %v, want %v", c.id, cart.BackupKind(), c.kind)
		}
	}
}

func TestROMReadMirrorsAcrossImageSize(t *testing.T) {
	rom := buildROM("T", "ABCE", 256)
	c := New(rom)
	if c.ReadROM(0) != c.ReadROM(256) {
		t.Fatalf("ROM read should mirror at image size boundary")
	}
}

func TestBackupReadWriteRoundtrip(t *testing.T) {
	rom := buildROM("T", "ABCE", 1024)
	rom = append(rom, []byte("SRAM_V110")...)
	c := New(rom)
	c.WriteBackup(10, 0x42)
	if got := c.ReadBackup(10); got != 0x42 {
		t.Fatalf("ReadBackup(10) = %#x, want 0x42", got)
	}
	saved := c.SaveBackup()
	c2 := New(rom)
	c2.LoadBackup(saved)
	if got := c2.ReadBackup(10); got != 0x42 {
		t.Fatalf("after LoadBackup, ReadBackup(10) = %#x, want 0x42", got)
	}
}

func TestNoBackupReadsAllOnes(t *testing.T) {
	rom := buildROM("T", "ABCE", 1024)
	c := New(rom)
	if got := c.ReadBackup(0); got != 0xFF {
		t.Fatalf("ReadBackup with no backup = %#x, want 0xFF", got)
	}
}
