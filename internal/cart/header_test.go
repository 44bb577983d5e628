package cart

import "testing"

// buildROM makes a synthetic ROM with a valid GBA header.
func buildROM(title, gameCode string, size int) []byte {
	rom := make([]byte, size)
	// entry point: a branch-ish placeholder value, not validated by ParseHeader
	rom[0x00], rom[0x01], rom[0x02], rom[0x03] = 0x2E, 0x00, 0x00, 0xEA

	tbytes := []byte(title)
	if len(tbytes) > 12 {
		tbytes = tbytes[:12]
	}
	copy(rom[0xA0:0xAC], tbytes)
	copy(rom[0xAC:0xB0], []byte(gameCode))
	rom[0xB0], rom[0xB1] = '0', '1'
	rom[0xB2] = 0x96
	rom[0xB3] = 0x00
	rom[0xB4] = 0x00
	rom[0xBC] = 0x00

	var hsum byte
	for addr := 0xA0; addr <= 0xBC; addr++ {
		hsum -= rom[addr]
	}
	hsum -= 0x19
	rom[0xBD] = hsum
	return rom
}

func TestParseHeader_Basic(t *testing.T) {
	rom := buildROM("TESTGAME", "ABCE", 1024*1024)
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	if h.Title != "TESTGAME" {
		t.Fatalf("Title got %q want %q", h.Title, "TESTGAME")
	}
	if h.GameCode != "ABCE" {
		t.Fatalf("GameCode got %q want ABCE", h.GameCode)
	}
	if h.FixedValue != 0x96 {
		t.Fatalf("FixedValue got %#02x want 0x96", h.FixedValue)
	}
	if !HeaderChecksumOK(rom) {
		t.Fatalf("HeaderChecksumOK = false, want true")
	}
}

func TestHeaderChecksum_Bad(t *testing.T) {
	rom := buildROM("TESTGAME", "ABCE", 1024*1024)
	rom[0xA0] ^= 0xFF
	if HeaderChecksumOK(rom) {
		t.Fatalf("HeaderChecksumOK = true, want false after corruption")
	}
}

func TestParseHeader_ShortROM(t *testing.T) {
	short := make([]byte, 0x80)
	if _, err := ParseHeader(short); err == nil {
		t.Fatalf("expected error on too-small ROM, got nil")
	}
}
