package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/waftester/vulnprobe/pkg/defaults"
)

var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent suppresses the banner and live output.
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// ConfigureColor disables color when w is not a terminal or NO_COLOR is set.
func ConfigureColor(w io.Writer, noColorEnv bool) {
	if noColorEnv || !IsTerminal(w) {
		SetNoColor(true)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

const bannerArt = `
                __                       __
 _   ____  __  / /___  ________  ____   / /_  ___
| | / / / / / / / __ \/ ___/ _ \/ __ \ / __ \/ _ \
| |/ / /_/ / / / / / / /  /  __/ /_/ // /_/ /  __/
|___/\__,_/_/ /_/ /_/_/   \___/ .___//_.___/\___/
                             /_/
`

// PrintBanner writes the application banner to w.
func PrintBanner(w io.Writer) {
	if IsSilent() {
		return
	}
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                     v%s\n\n", VersionStyle.Render(defaults.Version))
}

// PrintOption prints one configuration line, ffuf-style:
//
//	:: Target           : https://example.com
func PrintOption(w io.Writer, name, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(w, " :: %s : %s\n", LabelStyle.Render(name), value)
}
