// Package platform is the windowed ebiten frontend around internal/gba.Machine:
// framebuffer blit, 10-button input polling, and FIFO-fed audio streaming.
package platform

import (
	"time"

	"github.com/gba-emu/core/internal/gba"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	screenWidth  = 240
	screenHeight = 160

	cyclesPerSecond = 1 << 24 // GBA system clock, 16.78 MHz
)

// Game drives an internal/gba.Machine inside an ebiten.Game loop.
type Game struct {
	cfg Config
	m   *gba.Machine

	tex  *ebiten.Image
	rgba []byte

	paused   bool
	fast     bool
	lastTime time.Time
	cycleAcc float64

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioSrc    *machineStream
	muted       bool
}

// New returns a Game ready to run m in a window sized per cfg.
func New(cfg Config, m *gba.Machine) *Game {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenWidth*cfg.Scale, screenHeight*cfg.Scale)
	g := &Game{
		cfg:      cfg,
		m:        m,
		rgba:     make([]byte, screenWidth*screenHeight*4),
		lastTime: time.Now(),
		audioCtx: audio.NewContext(sampleRate),
	}
	return g
}

// Run starts the ebiten game loop; it blocks until the window is closed.
func (g *Game) Run() error { return ebiten.RunGame(g) }

func (g *Game) Update() error {
	if g.audioPlayer == nil {
		g.muted = true
		g.audioSrc = &machineStream{src: g.m, muted: &g.muted}
		if p, err := g.audioCtx.NewPlayer(g.audioSrc); err == nil {
			g.audioPlayer = p
			g.audioPlayer.Play()
		}
	}

	g.pollButtons()

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	g.fast = ebiten.IsKeyPressed(ebiten.KeyTab)

	muted := g.paused
	if muted != g.muted {
		g.muted = muted
		g.lastTime = time.Now()
		g.cycleAcc = 0
	}

	g.advance()
	return nil
}

// pollButtons reads the keyboard into the GBA's 10-button layout and
// forwards it to the machine every tick.
func (g *Game) pollButtons() {
	var b gba.Buttons
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		b.Right = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		b.Left = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		b.Up = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		b.Down = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyZ) {
		b.A = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyX) {
		b.B = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyEnter) {
		b.Start = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
		b.Select = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) {
		b.L = true
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) {
		b.R = true
	}
	g.m.SetButtons(b)
}

// advance paces the core at the GBA's native clock rate, decoupled from
// ebiten's ~60Hz tick.
func (g *Game) advance() {
	if g.paused {
		return
	}
	now := time.Now()
	dt := now.Sub(g.lastTime).Seconds()
	if dt < 0 {
		dt = 0
	}
	g.lastTime = now

	speed := 1.0
	if g.fast {
		speed = 4.0
	}
	g.cycleAcc += dt * cyclesPerSecond * speed

	// Cap the catch-up window so a stalled window (e.g. dragged) doesn't
	// spiral into replaying several seconds of lost wall-clock time.
	maxCatchUp := cyclesPerSecond / 4.0
	if g.cycleAcc > maxCatchUp {
		g.cycleAcc = maxCatchUp
	}
	target := g.m.Cycle() + uint64(g.cycleAcc)
	g.m.RunUntil(target)
	g.cycleAcc = 0
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.tex == nil {
		g.tex = ebiten.NewImage(screenWidth, screenHeight)
	}
	bgr555ToRGBA(g.m.Framebuffer(), g.rgba)
	g.tex.WritePixels(g.rgba)
	screen.DrawImage(g.tex, nil)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}
