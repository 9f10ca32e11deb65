package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal asks on w and reads answers from r. With AssumeYes every confirmation
// is accepted without reading.
type Terminal struct {
	AssumeYes bool

	mu sync.Mutex
	in *bufio.Reader
	w  io.Writer
}

// NewTerminal returns a prompter over r and w.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(r), w: w}
}

// Confirm prints msg and accepts y, yes or 예. EOF counts as no.
func (t *Terminal) Confirm(msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.AssumeYes {
		fmt.Fprintf(t.w, "%s %s\n", th.Primary.Render("?"), msg)
		return true
	}
	fmt.Fprintf(t.w, "%s %s [y/N] ", th.Primary.Render("?"), msg)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(t.w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "예", "네":
		return true
	}
	return false
}

// Alert prints msg.
func (t *Terminal) Alert(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s %s\n", th.Primary.Render("!"), msg)
}

// Scripted answers confirmations from a fixed list and records everything shown.
// Once the answers run out every confirmation is declined.
type Scripted struct {
	mu      sync.Mutex
	answers []bool
	Asked   []string
	Alerts  []string
}

// NewScripted returns a prompter that answers in order.
func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Confirm(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, msg)
	if len(s.answers) == 0 {
		return false
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a
}

func (s *Scripted) Alert(msg string) {
	s.mu.Lock()
	s.Alerts = append(s.Alerts, msg)
	s.mu.Unlock()
}
