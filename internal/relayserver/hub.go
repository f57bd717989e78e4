package relayserver

import (
	"sync"

	"ciphersync/internal/domain"
)

type writer interface {
	Write(message []byte) error
	Close() error
}

type connection struct {
	owned  domain.OwnedIdentity
	writer writer
}

// hub fans notices out to the websocket connections of each owned identity.
type hub struct {
	mu          sync.RWMutex
	connections map[domain.OwnedIdentity]map[*connection]struct{}
}

func newHub() *hub {
	return &hub{connections: make(map[domain.OwnedIdentity]map[*connection]struct{})}
}

func (h *hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.owned] == nil {
		h.connections[conn.owned] = make(map[*connection]struct{})
	}
	h.connections[conn.owned][conn] = struct{}{}
}

func (h *hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.owned]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.owned)
	}
}

func (h *hub) count(owned domain.OwnedIdentity) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[owned])
}

func (h *hub) broadcast(owned domain.OwnedIdentity, message []byte) {
	h.mu.RLock()
	set := h.connections[owned]
	conns := make([]*connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*connection
	for _, c := range conns {
		if err := c.writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.writer.Close()
		h.unregister(c)
	}
}
