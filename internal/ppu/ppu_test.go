package ppu

import "testing"

func TestHBlankFiresOncePerLine(t *testing.T) {
	hblanks := 0
	p := New(Hooks{OnHBlank: func() { hblanks++ }})
	p.Tick(CyclesPerLine)
	if hblanks != 1 {
		t.Fatalf("hblanks = %d, want 1 after one full line", hblanks)
	}
}

func TestVBlankAtLine160(t *testing.T) {
	vblanks := 0
	p := New(Hooks{OnVBlank: func() { vblanks++ }})
	p.Tick(CyclesPerLine * VisibleLines)
	if vblanks != 1 {
		t.Fatalf("vblanks = %d, want 1", vblanks)
	}
	if p.VCount() != VisibleLines {
		t.Fatalf("VCount() = %d, want %d", p.VCount(), VisibleLines)
	}
	if !p.InVBlank() {
		t.Fatalf("InVBlank() = false at line %d", p.VCount())
	}
}

func TestFrameWrapsAtTotalLines(t *testing.T) {
	p := New(Hooks{})
	p.Tick(CyclesPerLine * TotalLines)
	if p.VCount() != 0 {
		t.Fatalf("VCount() after full frame = %d, want 0", p.VCount())
	}
}

func TestRaiseGatedByDispstatEnable(t *testing.T) {
	raised := false
	p := New(Hooks{RaiseHBlank: func() { raised = true }})
	p.Tick(HBlankStart)
	if raised {
		t.Fatalf("RaiseHBlank fired without HBlank IRQ enable bit set")
	}
	p2 := New(Hooks{RaiseHBlank: func() { raised = true }})
	p2.WriteByte(offDispStat, 1<<4)
	p2.Tick(HBlankStart)
	if !raised {
		t.Fatalf("RaiseHBlank should fire once HBlank IRQ enable bit is set")
	}
}
