package timer

import "testing"

func TestOverflowReloadsAndFiresCallback(t *testing.T) {
	overflowed := -1
	b := New(func(i int) { overflowed = i })
	// Timer 0: reload 0xFFFE, prescaler /1, IRQ enable, start.
	b.WriteByte(0, 0xFE)
	b.WriteByte(1, 0xFF)
	b.WriteByte(2, (1<<6)|(1<<7)) // irqEnable + enabled, prescale=0
	b.Tick(1)                     // 0xFFFE -> 0xFFFF
	if b.Counter(0) != 0xFFFF {
		t.Fatalf("Counter(0) = %#x, want 0xFFFF", b.Counter(0))
	}
	b.Tick(1) // overflow -> reload 0xFFFE
	if b.Counter(0) != 0xFFFE {
		t.Fatalf("Counter(0) after overflow = %#x, want reload 0xFFFE", b.Counter(0))
	}
	if overflowed != 0 {
		t.Fatalf("overflow callback index = %d, want 0", overflowed)
	}
}

func TestPrescalerGatesIncrements(t *testing.T) {
	b := New(nil)
	b.WriteByte(2, 1<<7|0x01) // prescale /64, enabled
	b.Tick(63)
	if b.Counter(0) != 0 {
		t.Fatalf("Counter(0) after 63 cycles at /64 = %d, want 0", b.Counter(0))
	}
	b.Tick(1)
	if b.Counter(0) != 1 {
		t.Fatalf("Counter(0) after 64 cycles at /64 = %d, want 1", b.Counter(0))
	}
}

func TestCascadeIgnoresOwnPrescaler(t *testing.T) {
	b := New(nil)
	// Timer 0: reload 0xFFFF (overflows every cycle), enabled, /1.
	b.WriteByte(0, 0xFF)
	b.WriteByte(1, 0xFF)
	b.WriteByte(2, 1<<7)
	// Timer 1: cascade + enabled, prescaler /1024 (ignored while cascading).
	b.WriteByte(4+2, (1<<2)|(1<<7)|0x03)
	b.Tick(1)
	if b.Counter(1) != 1 {
		t.Fatalf("cascaded Counter(1) = %d, want 1 after one lower-timer overflow", b.Counter(1))
	}
}
