package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

var defaultFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const defaultInterval = 150 * time.Millisecond

// Spinner animates a progress line while a slow operation runs. The first
// frame is drawn after one interval, so fast operations leave no trace
// besides their completion message.
type Spinner struct {
	frames   []string
	interval time.Duration
	message  string
	writer   io.Writer

	mu      sync.Mutex
	started time.Time
	drawn   bool

	once   sync.Once
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewSpinner(writer io.Writer, message string) *Spinner {
	return &Spinner{
		frames:   defaultFrames,
		interval: defaultInterval,
		message:  message,
		writer:   writer,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	go s.spin()
}

// Stop ends the animation, erases the progress line if one was drawn and
// prints completionMessage. Only the first call has an effect.
func (s *Spinner) Stop(completionMessage string) {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh

		s.mu.Lock()
		drawn := s.drawn
		s.mu.Unlock()

		if drawn {
			fmt.Fprint(s.writer, "\r\033[K")
		}
		if completionMessage != "" {
			fmt.Fprintln(s.writer, completionMessage)
		}
	})
}

func (s *Spinner) spin() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for frame := 0; ; frame = (frame + 1) % len(s.frames) {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		line := fmt.Sprintf("\r%s %s", s.frames[frame], s.message)
		if elapsed := time.Since(s.started); elapsed >= time.Second {
			line += fmt.Sprintf(" (%s)", elapsedLabel(elapsed))
		}
		s.drawn = true
		s.mu.Unlock()

		fmt.Fprint(s.writer, line)
	}
}

// elapsedLabel renders d as "3 seconds" or "1 minute".
func elapsedLabel(d time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-d), now, "", ""))
}

type SpinnerOptions struct {
	SuccessMsg string
	ErrorMsg   string
}

type SpinnerOption func(*SpinnerOptions)

func WithSuccessMsg(msg string) SpinnerOption {
	return func(o *SpinnerOptions) {
		o.SuccessMsg = msg
	}
}

func WithErrorMsg(msg string) SpinnerOption {
	return func(o *SpinnerOptions) {
		o.ErrorMsg = msg
	}
}

// SpinnerFunc runs fn behind a spinner and reports its outcome on writer.
func SpinnerFunc[T any](writer io.Writer, message string, fn func() (T, error), options ...SpinnerOption) (T, error) {
	opts := &SpinnerOptions{
		SuccessMsg: message,
		ErrorMsg:   message,
	}
	for _, option := range options {
		option(opts)
	}

	spinner := NewSpinner(writer, message)
	spinner.Start()

	result, err := fn()
	if err != nil {
		spinner.Stop(fmt.Sprintf("%s %s", ErrorSymbol, opts.ErrorMsg))
	} else {
		spinner.Stop(fmt.Sprintf("%s %s", SuccessSymbol, opts.SuccessMsg))
	}

	return result, err
}
