package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner holds spinner animation frames
type Spinner struct {
	Frames   []string
	Interval time.Duration
}

var (
	dotsSpinner = Spinner{
		Frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		Interval: 80 * time.Millisecond,
	}
	lineSpinner = Spinner{
		Frames:   []string{"-", "\\", "|", "/"},
		Interval: 100 * time.Millisecond,
	}
)

// DefaultSpinner returns braille dots on Unicode terminals and -\|/
// elsewhere.
func DefaultSpinner() Spinner {
	if UnicodeTerminal() {
		return dotsSpinner
	}
	return lineSpinner
}

// Activity animates a spinner with a message until Stop is called.
// On a non-terminal writer it prints the message once and stays quiet.
type Activity struct {
	w       io.Writer
	spinner Spinner
	message string

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	stopped bool
}

// StartActivity begins animating msg on w.
func StartActivity(w io.Writer, msg string) *Activity {
	a := &Activity{
		w:       w,
		spinner: DefaultSpinner(),
		message: msg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if IsSilent() {
		close(a.done)
		return a
	}
	if !IsTerminal(w) {
		fmt.Fprintf(w, "%s\n", msg)
		close(a.done)
		return a
	}
	go a.loop()
	return a
}

func (a *Activity) loop() {
	defer close(a.done)
	t := time.NewTicker(a.spinner.Interval)
	defer t.Stop()
	for i := 0; ; i++ {
		a.mu.Lock()
		fmt.Fprintf(a.w, "\r%s %s", SpinnerStyle.Render(a.spinner.Frames[i%len(a.spinner.Frames)]), a.message)
		a.mu.Unlock()
		select {
		case <-a.stop:
			fmt.Fprint(a.w, "\r\033[K")
			return
		case <-t.C:
		}
	}
}

// Printf writes a line above the spinner without tearing it.
func (a *Activity) Printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if IsTerminal(a.w) {
		fmt.Fprint(a.w, "\r\033[K")
	}
	Fprintf(a.w, format, args...)
}

// Stop ends the animation and clears the line. Safe to call twice.
func (a *Activity) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.stop)
	a.mu.Unlock()
	<-a.done
}
