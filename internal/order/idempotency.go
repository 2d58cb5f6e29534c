package order

import (
	"strconv"
	"strings"
	"sync"

	"main/internal/schema"
)

// Guard decides whether a request is the first of its kind this session.
type Guard interface {
	// IsUnique records the request on first sight and reports whether
	// it was unseen. The check-and-record is atomic.
	IsUnique(req schema.OrderRequest) bool
	// Forget releases a recorded request so a later identical
	// submission is admitted again.
	Forget(req schema.OrderRequest)
}

// SessionGuard is an in-memory guard scoped to the process lifetime.
// The duplicate key is the correlation id when the request carries one,
// otherwise token|side|kind|qty|price.
type SessionGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSessionGuard creates an empty guard.
func NewSessionGuard() *SessionGuard {
	return &SessionGuard{seen: make(map[string]struct{})}
}

func (g *SessionGuard) IsUnique(req schema.OrderRequest) bool {
	key := dedupeKey(req)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

func (g *SessionGuard) Forget(req schema.OrderRequest) {
	key := dedupeKey(req)
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
}

// Reset clears the session, as a process restart would.
func (g *SessionGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = make(map[string]struct{})
}

func dedupeKey(req schema.OrderRequest) string {
	if req.CorrelationID != "" {
		return req.CorrelationID
	}
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(req.Token), 10))
	b.WriteByte('|')
	b.WriteString(req.Side.String())
	b.WriteByte('|')
	b.WriteString(req.Kind.String())
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(int64(req.Qty), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(int64(req.Price), 10))
	return b.String()
}
