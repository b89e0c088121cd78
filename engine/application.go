package engine

// Options are the run settings given on the command line.
type Options struct {
	// MaxFrames stops the loop after that many frames, 0 runs until quit.
	MaxFrames uint64
	// Capture writes the draw image of the last frame to this BMP file.
	Capture string
	// Progress reports the preload of the game assets.
	Progress func(done, total int)
	// StartPosX and StartPosY place the window.
	StartPosX uint32
	StartPosY uint32
}
