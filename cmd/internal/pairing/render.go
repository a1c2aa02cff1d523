package pairing

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
)

// Renderer presents a challenge to the operator.
type Renderer interface {
	Render(c Challenge) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(c Challenge) error

// Render calls f(c).
func (f RendererFunc) Render(c Challenge) error { return f(c) }

// TerminalRenderer draws challenges as half-block QR codes.
type TerminalRenderer struct {
	w  io.Writer
	mu sync.Mutex
}

// NewTerminalRenderer writes to w, or stdout when w is nil.
func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalRenderer{w: w}
}

// Render prints the QR code followed by scan instructions.
func (r *TerminalRenderer) Render(c Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintln(r.w, "Open Telegram on your phone: Settings > Devices > Link Desktop Device, then scan:"); err != nil {
		return err
	}
	qrterminal.GenerateHalfBlock(c.URL, qrterminal.L, r.w)

	expires := "unknown"
	if !c.ExpiresAt.IsZero() {
		expires = c.ExpiresAt.Local().Format(time.TimeOnly)
	}
	_, err := fmt.Fprintf(r.w, "\nWaiting for the QR code to be scanned (expires %s)...\n", expires)
	return err
}

var _ Renderer = (*TerminalRenderer)(nil)
