package mcpserver

import (
	"sync"

	"github.com/agentic-research/spaceused/internal/analyzer"
)

// hotSwapSession lets the refresh tool replace the analysed session while
// other tool calls are reading it.
type hotSwapSession struct {
	mu      sync.RWMutex
	current *analyzer.Session
}

// with runs fn against the current session. The session stays open until
// fn returns.
func (h *hotSwapSession) with(fn func(*analyzer.Session)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.current)
}

// swap installs next and closes the session it replaces once no reader
// holds it.
func (h *hotSwapSession) swap(next *analyzer.Session) error {
	h.mu.Lock()
	old := h.current
	h.current = next
	h.mu.Unlock()

	if old == nil || old == next {
		return nil
	}
	return old.Close()
}
