package utils

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// spinnerFrames are cycled through while a conversion runs.
var spinnerFrames = []rune(`⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏`)

// Spinner is a single line progress indicator. Next to the message it shows
// how long the current conversion has been running, since walking the
// encoding ladder of a long animation can take a while.
type Spinner struct {
	mu         sync.Mutex
	delay      time.Duration
	writer     io.Writer
	message    string
	lastOutput string
	started    time.Time
	StopMsg    string
	hideCursor bool
	done       chan struct{}
	stopped    chan struct{}
}

// NewSpinner returns a progress indicator writing to stderr.
func NewSpinner(msg string, d time.Duration, hideCursor bool) *Spinner {
	return NewSpinnerTo(os.Stderr, msg, d, hideCursor)
}

// NewSpinnerTo returns a progress indicator writing to w.
func NewSpinnerTo(w io.Writer, msg string, d time.Duration, hideCursor bool) *Spinner {
	return &Spinner{
		delay:      d,
		writer:     w,
		message:    msg,
		hideCursor: hideCursor,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start draws the indicator until Stop is called.
func (s *Spinner) Start() {
	if s.hideCursor && runtime.GOOS != "windows" {
		fmt.Fprint(s.writer, "\033[?25l")
	}
	s.started = time.Now()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.delay)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) draw(r rune) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.started).Truncate(time.Second)
	output := fmt.Sprintf("\r%s%s %c %s%s", s.message, SuccessColor, r, elapsed, DefaultColor)
	fmt.Fprint(s.writer, output)
	s.lastOutput = output
}

// Stop halts the indicator, clears its line and prints StopMsg.
func (s *Spinner) Stop() {
	close(s.done)
	<-s.stopped

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	s.RestoreCursor()
	if len(s.StopMsg) > 0 {
		fmt.Fprint(s.writer, s.StopMsg)
	}
}

// RestoreCursor makes the cursor visible again.
func (s *Spinner) RestoreCursor() {
	if s.hideCursor && runtime.GOOS != "windows" {
		fmt.Fprint(s.writer, "\033[?25h")
	}
}

// clear deletes the last line. The caller holds the lock.
func (s *Spinner) clear() {
	n := utf8.RuneCountInString(s.lastOutput)
	if runtime.GOOS == "windows" {
		fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", n)+"\r")
		s.lastOutput = ""
		return
	}
	fmt.Fprint(s.writer, "\r\033[K")
	s.lastOutput = ""
}
