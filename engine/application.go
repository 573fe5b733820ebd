package engine

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32
	// Window starting position y axis, if applicable.
	StartPosY uint32
	// The application name used in windowing, if applicable.
	Name string
	// Path of the TOML configuration. Empty means defaults and no reload.
	ConfigPath string
	// Headless runs without a window; the back buffer size comes from the
	// configuration only.
	Headless bool
	// MaxFrames stops the loop after that many frames. Zero runs until quit.
	MaxFrames uint64
}
