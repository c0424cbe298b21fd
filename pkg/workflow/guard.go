package workflow

import "sync"

// Guard is the re-entrancy lock set: at most one run per workflow id. The
// runner owns one instance; there is no process-wide shared state.
type Guard interface {
	// TryAcquire atomically checks and inserts the id. It returns false if
	// a run already holds the id.
	TryAcquire(workflowID string) bool
	Release(workflowID string)
}

// MemoryGuard implements Guard with a mutex-protected set.
type MemoryGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{running: make(map[string]struct{})}
}

func (g *MemoryGuard) TryAcquire(workflowID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.running[workflowID]; held {
		return false
	}

	g.running[workflowID] = struct{}{}

	return true
}

func (g *MemoryGuard) Release(workflowID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.running, workflowID)
}
