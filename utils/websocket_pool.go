package utils

import (
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/structures"

	"github.com/gorilla/websocket"
)

type pooledConnection struct {
	conn     *websocket.Conn
	refCount int
}

type websocketPool struct {
	mu          sync.Mutex
	connections map[string]*pooledConnection
}

var globalWebsocketPool = websocketPool{connections: make(map[string]*pooledConnection)}

const PEER_DIAL_TIMEOUT = 3 * time.Second

// AcquireWebsocketConnection returns an existing shared websocket connection for the
// given peer or establishes a new one. Each successful call increments the reference count.
func AcquireWebsocketConnection(peer structures.PeerInfo) *websocket.Conn {
	// First, try to reuse an existing live entry.
	globalWebsocketPool.mu.Lock()
	if entry, ok := globalWebsocketPool.connections[peer.Id]; ok && entry.conn != nil {
		entry.refCount++
		conn := entry.conn
		globalWebsocketPool.mu.Unlock()
		return conn
	}
	globalWebsocketPool.mu.Unlock()

	return establishAndStoreConnection(peer)
}

// ReleaseWebsocketConnection decrements the reference count for the given peer and closes
// the underlying connection when it is no longer used anywhere.
func ReleaseWebsocketConnection(peerId string) {
	globalWebsocketPool.mu.Lock()
	entry, ok := globalWebsocketPool.connections[peerId]
	if !ok {
		globalWebsocketPool.mu.Unlock()
		return
	}

	entry.refCount--
	if entry.refCount <= 0 {
		if entry.conn != nil {
			_ = entry.conn.Close()
		}
		delete(globalWebsocketPool.connections, peerId)
	}
	globalWebsocketPool.mu.Unlock()
}

// ReleasePeerConnections releases all connections associated with the provided map.
func ReleasePeerConnections(wsConnMap map[string]*websocket.Conn) {
	for peerId := range wsConnMap {
		ReleaseWebsocketConnection(peerId)
	}
}

// ReportWebsocketFailure marks the pooled connection as failed by closing it and resetting
// the stored pointer. Existing references will be released separately when callers clean up.
func ReportWebsocketFailure(peerId string) {
	globalWebsocketPool.mu.Lock()
	if entry, ok := globalWebsocketPool.connections[peerId]; ok {
		if entry.conn != nil {
			_ = entry.conn.Close()
			entry.conn = nil
		}
	}
	globalWebsocketPool.mu.Unlock()
}

// GetPeerConnections ensures connections for the given peers exist and returns a map that
// shares the pooled connections while incrementing reference counts for each.
func GetPeerConnections(peers []structures.PeerInfo) map[string]*websocket.Conn {
	wsConnMap := make(map[string]*websocket.Conn)
	for _, peer := range peers {
		if conn := AcquireWebsocketConnection(peer); conn != nil {
			wsConnMap[peer.Id] = conn
		}
	}
	return wsConnMap
}

func establishAndStoreConnection(peer structures.PeerInfo) *websocket.Conn {
	conn := DialPeer(peer)
	if conn == nil {
		return nil
	}

	globalWebsocketPool.mu.Lock()
	if entry, ok := globalWebsocketPool.connections[peer.Id]; ok {
		entry.refCount++
		if entry.conn == nil {
			entry.conn = conn
			globalWebsocketPool.mu.Unlock()
			return conn
		}
		globalWebsocketPool.mu.Unlock()
		_ = conn.Close()
		return entry.conn
	}

	globalWebsocketPool.connections[peer.Id] = &pooledConnection{conn: conn, refCount: 1}
	globalWebsocketPool.mu.Unlock()

	return conn
}

// DialPeer opens a fresh websocket connection to the peer's discovery endpoint.
// Returns nil on any failure; callers treat that as the peer being unreachable.
func DialPeer(peer structures.PeerInfo) *websocket.Conn {
	if peer.Address == "" || peer.Port <= 0 {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: PEER_DIAL_TIMEOUT}

	conn, _, err := dialer.Dial(peer.WebsocketUrl(), nil)
	if err != nil {
		return nil
	}

	return conn
}
