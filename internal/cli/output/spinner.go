package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a braille progress indicator on w while a slow
// operation runs. It must be pointed at a terminal stream (stderr);
// frames are drawn with carriage returns.
type Spinner struct {
	w       io.Writer
	message string
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewSpinner returns a spinner labelled with message. Call Start to
// begin animating and exactly one of Stop, Success, or Fail to finish.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
	}
}

// Start begins the animation in a background goroutine.
func (s *Spinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) finish(line string) {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(s.w, line)
	})
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.finish("\r\033[K")
}

// Success halts the animation and prints message with a check mark.
func (s *Spinner) Success(message string) {
	s.finish(fmt.Sprintf("\r✓ %s\n", message))
}

// Fail halts the animation and prints message with a cross.
func (s *Spinner) Fail(message string) {
	s.finish(fmt.Sprintf("\r✗ %s\n", message))
}
