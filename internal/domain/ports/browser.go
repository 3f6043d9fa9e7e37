package ports

// DisplayLauncher opens the display page on the machine running the server
type DisplayLauncher interface {
	// Launch opens url full screen
	Launch(url string) error
	// Detect reports which browser Launch would use
	Detect() (string, error)
}
