package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// Launcher starts a browser in kiosk mode pointed at the display page
type Launcher struct {
	browsers []Browser
	lookPath func(file string) (string, error)
	start    func(name string, args ...string) error
}

// Browser describes how to open a URL full screen with one browser
type Browser struct {
	Name    string
	Command string
	Args    func(url string) []string
}

// NewLauncher creates a launcher for the current platform
func NewLauncher() *Launcher {
	return &Launcher{
		browsers: detectBrowsers(runtime.GOOS),
		lookPath: exec.LookPath,
		start:    startDetached,
	}
}

// Launch opens url with the first installed browser
func (l *Launcher) Launch(url string) error {
	browser, err := l.selectBrowser()
	if err != nil {
		return fmt.Errorf("browser selection: %w", err)
	}

	if err := l.start(browser.Command, browser.Args(url)...); err != nil {
		return fmt.Errorf("launching %s: %w", browser.Name, err)
	}
	return nil
}

// Detect returns the name of the browser Launch would use
func (l *Launcher) Detect() (string, error) {
	browser, err := l.selectBrowser()
	if err != nil {
		return "", err
	}
	return browser.Name, nil
}

func (l *Launcher) selectBrowser() (*Browser, error) {
	if len(l.browsers) == 0 {
		return nil, errors.New("no browsers known for this platform")
	}

	for i := range l.browsers {
		if _, err := l.lookPath(l.browsers[i].Command); err == nil {
			return &l.browsers[i], nil
		}
	}

	return nil, errors.New("no supported browser installed")
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 - command comes from the fixed browser table
	if err := cmd.Start(); err != nil {
		return err
	}

	// Reap the browser when it exits
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func kioskArgs(flags ...string) func(url string) []string {
	return func(url string) []string {
		return append(append([]string{}, flags...), url)
	}
}

// detectBrowsers lists kiosk-capable browsers in order of preference, ending with
// the platform opener, which shows the page but not full screen
func detectBrowsers(goos string) []Browser {
	chromeFlags := []string{"--kiosk", "--noerrdialogs", "--disable-infobars", "--no-first-run"}

	switch goos {
	case "linux":
		return []Browser{
			{Name: "Chromium", Command: "chromium", Args: kioskArgs(chromeFlags...)},
			{Name: "Chromium", Command: "chromium-browser", Args: kioskArgs(chromeFlags...)},
			{Name: "Chrome", Command: "google-chrome", Args: kioskArgs(chromeFlags...)},
			{Name: "Firefox", Command: "firefox", Args: kioskArgs("--kiosk")},
			{Name: "xdg-open", Command: "xdg-open", Args: kioskArgs()},
		}
	case "darwin":
		return []Browser{
			{Name: "Chrome", Command: "open", Args: func(url string) []string {
				return append([]string{"-a", "Google Chrome", "--args"}, append(chromeFlags, url)...)
			}},
			{Name: "Default", Command: "open", Args: kioskArgs()},
		}
	case "windows":
		return []Browser{
			{Name: "Edge", Command: "cmd", Args: kioskArgs("/c", "start", "msedge", "--kiosk", "--edge-kiosk-type=fullscreen")},
			{Name: "Default", Command: "cmd", Args: kioskArgs("/c", "start")},
		}
	default:
		return nil
	}
}

var _ ports.DisplayLauncher = (*Launcher)(nil)
