package interrupt

import "testing"

func TestAssertedRequiresIEandIFandIME(t *testing.T) {
	c := New()
	c.Raise(VBlank)
	if c.Asserted() {
		t.Fatalf("asserted before IE/IME set")
	}
	c.SetIE(1 << VBlank)
	if c.Asserted() {
		t.Fatalf("asserted before IME set")
	}
	c.SetIME(true)
	if !c.Asserted() {
		t.Fatalf("want asserted with IE, IF, IME all set")
	}
}

func TestWriteIFClearsOnlyWrittenBits(t *testing.T) {
	c := New()
	c.Raise(VBlank)
	c.Raise(Timer0)
	c.WriteIF(1 << VBlank)
	if c.IF()&(1<<VBlank) != 0 {
		t.Fatalf("VBlank bit should be cleared")
	}
	if c.IF()&(1<<Timer0) == 0 {
		t.Fatalf("Timer0 bit should remain set")
	}
}

func TestPendingIgnoresIME(t *testing.T) {
	c := New()
	c.SetIE(1 << Keypad)
	c.Raise(Keypad)
	c.SetIME(false)
	if !c.Pending() {
		t.Fatalf("Pending should be true regardless of IME (used for halt wake)")
	}
	if c.Asserted() {
		t.Fatalf("Asserted should still require IME")
	}
}
