package http

import (
	"context"
	"sync"

	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// Connection is a registered websocket client's outbound queue
type Connection struct {
	ID   string
	Mode ClientMode
	Send chan ports.UpdateEvent
}

// ConnectionManager fans update events out to websocket clients. A single loop
// owns registration and delivery; the mutex only guards reads from other goroutines.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	events     chan ports.UpdateEvent
	register   chan *Connection
	unregister chan string
	done       chan struct{}
}

// NewConnectionManager creates a manager; call Run to start delivering
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		events:      make(chan ports.UpdateEvent, 256),
		register:    make(chan *Connection),
		unregister:  make(chan string),
		done:        make(chan struct{}),
	}
}

// Run delivers events until ctx is done
func (cm *ConnectionManager) Run(ctx context.Context) {
	defer close(cm.done)

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-cm.register:
			cm.mu.Lock()
			cm.connections[conn.ID] = conn
			cm.mu.Unlock()
		case id := <-cm.unregister:
			cm.mu.Lock()
			cm.drop(id)
			cm.mu.Unlock()
		case event := <-cm.events:
			cm.deliver(event)
		}
	}
}

// deliver queues event on every connection. A full queue means the client
// stopped reading, so it is dropped and its read pump sees the closed channel.
func (cm *ConnectionManager) deliver(event ports.UpdateEvent) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, conn := range cm.connections {
		select {
		case conn.Send <- event:
		default:
			cm.drop(id)
		}
	}
}

// drop must be called with mu held
func (cm *ConnectionManager) drop(id string) {
	if conn, ok := cm.connections[id]; ok {
		delete(cm.connections, id)
		close(conn.Send)
	}
}

// RegisterConnection adds conn. After shutdown its queue is closed instead.
func (cm *ConnectionManager) RegisterConnection(conn *Connection) {
	select {
	case cm.register <- conn:
	case <-cm.done:
		close(conn.Send)
	}
}

// Unregister removes and closes the connection with connID
func (cm *ConnectionManager) Unregister(connID string) {
	select {
	case cm.unregister <- connID:
	case <-cm.done:
	}
}

// Broadcast queues event for every connection. It is a no-op after shutdown.
func (cm *ConnectionManager) Broadcast(event ports.UpdateEvent) {
	select {
	case cm.events <- event:
	case <-cm.done:
	}
}

// Count returns the number of registered connections
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// CountByMode returns registered connections grouped by client mode
func (cm *ConnectionManager) CountByMode() map[ClientMode]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[ClientMode]int, 2)
	for _, conn := range cm.connections {
		counts[conn.Mode]++
	}
	return counts
}

// CloseAll drops every connection
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id := range cm.connections {
		cm.drop(id)
	}
}
