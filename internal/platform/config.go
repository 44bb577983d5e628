package platform

// Config contains window/input/audio related settings for the windowed
// frontend.
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbacore"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
