package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// BrowserKind identifies the type of Chromium-based browser.
type BrowserKind string

const (
	BrowserChrome   BrowserKind = "chrome"
	BrowserBrave    BrowserKind = "brave"
	BrowserEdge     BrowserKind = "edge"
	BrowserChromium BrowserKind = "chromium"
	BrowserCustom   BrowserKind = "custom"
)

// BrowserExecutable represents a found browser binary.
type BrowserExecutable struct {
	Kind BrowserKind
	Path string
}

// FindChromeExecutable finds a Chrome/Chromium browser on the system.
// A non-empty customPath overrides detection and must exist.
func FindChromeExecutable(customPath string) (*BrowserExecutable, error) {
	if customPath != "" {
		if !fileExists(customPath) {
			return nil, fmt.Errorf("%w: configured binary %s does not exist", ErrDriverUnavailable, customPath)
		}
		return &BrowserExecutable{Kind: BrowserCustom, Path: customPath}, nil
	}

	var exe *BrowserExecutable
	switch runtime.GOOS {
	case "darwin":
		exe = findChromeMac()
	case "linux":
		exe = findChromeLinux()
	case "windows":
		exe = findChromeWindows()
	default:
		return nil, fmt.Errorf("%w: unsupported platform %s", ErrDriverUnavailable, runtime.GOOS)
	}

	if exe == nil {
		return nil, fmt.Errorf("%w (looked for Chrome/Brave/Edge/Chromium)", ErrDriverUnavailable)
	}
	return exe, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type browserCandidate struct {
	kind BrowserKind
	path string
}

func firstExisting(candidates []browserCandidate) *BrowserExecutable {
	for _, c := range candidates {
		if fileExists(c.path) {
			return &BrowserExecutable{Kind: c.kind, Path: c.path}
		}
	}
	return nil
}

// macOS Chrome detection
func findChromeMac() *BrowserExecutable {
	home := os.Getenv("HOME")
	return firstExisting([]browserCandidate{
		{BrowserChrome, "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"},
		{BrowserChrome, filepath.Join(home, "Applications/Google Chrome.app/Contents/MacOS/Google Chrome")},
		{BrowserBrave, "/Applications/Brave Browser.app/Contents/MacOS/Brave Browser"},
		{BrowserEdge, "/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
		{BrowserChromium, "/Applications/Chromium.app/Contents/MacOS/Chromium"},
	})
}

// Linux Chrome detection
func findChromeLinux() *BrowserExecutable {
	return firstExisting([]browserCandidate{
		{BrowserChrome, "/usr/bin/google-chrome"},
		{BrowserChrome, "/usr/bin/google-chrome-stable"},
		{BrowserChrome, "/usr/bin/chrome"},
		{BrowserBrave, "/usr/bin/brave-browser"},
		{BrowserBrave, "/usr/bin/brave-browser-stable"},
		{BrowserBrave, "/snap/bin/brave"},
		{BrowserEdge, "/usr/bin/microsoft-edge"},
		{BrowserEdge, "/usr/bin/microsoft-edge-stable"},
		{BrowserChromium, "/usr/bin/chromium"},
		{BrowserChromium, "/usr/bin/chromium-browser"},
		{BrowserChromium, "/snap/bin/chromium"},
	})
}

// Windows Chrome detection
func findChromeWindows() *BrowserExecutable {
	localAppData := os.Getenv("LOCALAPPDATA")
	programFiles := os.Getenv("ProgramFiles")
	if programFiles == "" {
		programFiles = "C:\\Program Files"
	}
	programFilesX86 := os.Getenv("ProgramFiles(x86)")
	if programFilesX86 == "" {
		programFilesX86 = "C:\\Program Files (x86)"
	}

	var candidates []browserCandidate
	if localAppData != "" {
		candidates = append(candidates,
			browserCandidate{BrowserChrome, filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe")},
			browserCandidate{BrowserBrave, filepath.Join(localAppData, "BraveSoftware", "Brave-Browser", "Application", "brave.exe")},
			browserCandidate{BrowserEdge, filepath.Join(localAppData, "Microsoft", "Edge", "Application", "msedge.exe")},
		)
	}
	candidates = append(candidates,
		browserCandidate{BrowserChrome, filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe")},
		browserCandidate{BrowserChrome, filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe")},
		browserCandidate{BrowserBrave, filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe")},
		browserCandidate{BrowserEdge, filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe")},
	)

	return firstExisting(candidates)
}
