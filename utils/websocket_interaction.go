package utils

import (
	"context"
	"sync"
	"time"

	"github.com/playergold/playergold-bootstrap-core/structures"

	"github.com/gorilla/websocket"
)

// QuorumWaiter broadcasts one message to a set of peers and collects their
// replies until the required count is reached. Peers that fail to answer get
// the message resent on a short timer; peers whose connection broke are
// redialed once after the round so the next round starts with a fresh socket.
type QuorumWaiter struct {
	responseCh chan QuorumResponse
	done       chan struct{}
	answered   map[string]struct{}
	responses  map[string][]byte
	timer      *time.Timer
	mu         sync.Mutex
	buf        []string
	failed     map[string]struct{}
}

type QuorumResponse struct {
	id  string
	msg []byte
}

const (
	RESEND_INTERVAL   = time.Second
	ACK_READ_DEADLINE = 2 * time.Second
)

// Protects concurrent access to wsConnMap (map[string]*websocket.Conn)
var WEBSOCKET_CONNECTION_MUTEX sync.RWMutex

// Ensures single writer per websocket connection (gorilla/websocket requirement)
var WEBSOCKET_WRITE_MUTEX sync.Map // key: peer id -> *sync.Mutex

func NewQuorumWaiter(maxPeers int) *QuorumWaiter {
	return &QuorumWaiter{
		responseCh: make(chan QuorumResponse, maxPeers),
		done:       make(chan struct{}),
		answered:   make(map[string]struct{}, maxPeers),
		responses:  make(map[string][]byte, maxPeers),
		timer:      time.NewTimer(0),
		buf:        make([]string, 0, maxPeers),
		failed:     make(map[string]struct{}),
	}
}

// SendAndWait pushes the message to every peer in targets and blocks until
// required distinct replies arrived, the context expired, or a resend round
// found nobody left to ask. Returns the replies keyed by peer id.
func (qw *QuorumWaiter) SendAndWait(
	ctx context.Context, message []byte, targets map[string]structures.PeerInfo,
	wsConnMap map[string]*websocket.Conn, required int,
) (map[string][]byte, bool) {

	// Reset state
	qw.mu.Lock()
	for k := range qw.answered {
		delete(qw.answered, k)
	}
	for k := range qw.responses {
		delete(qw.responses, k)
	}
	for k := range qw.failed {
		delete(qw.failed, k)
	}
	qw.buf = qw.buf[:0]
	qw.mu.Unlock()

	// Arm/Reset timer
	if !qw.timer.Stop() {
		select {
		case <-qw.timer.C:
		default:
		}
	}
	qw.timer.Reset(RESEND_INTERVAL)
	qw.done = make(chan struct{})

	targetIds := make([]string, 0, len(targets))

	for peerId := range targets {
		targetIds = append(targetIds, peerId)
	}

	// First send to all targets
	qw.sendMessages(targetIds, message, wsConnMap)

	for {
		select {
		case r := <-qw.responseCh:
			qw.mu.Lock()
			if _, ok := qw.answered[r.id]; !ok {
				qw.answered[r.id] = struct{}{}
				qw.responses[r.id] = r.msg
			}
			count := len(qw.answered)
			qw.mu.Unlock()

			if count >= required {
				close(qw.done)
				// copy responses
				qw.mu.Lock()
				out := make(map[string][]byte, len(qw.responses))
				for k, v := range qw.responses {
					out[k] = v
				}
				qw.mu.Unlock()

				// one-shot reconnect of failed peers
				qw.reconnectFailed(targets, wsConnMap)
				return out, true
			}

		case <-qw.timer.C:
			// resend to unanswered
			qw.mu.Lock()
			qw.buf = qw.buf[:0]
			for _, id := range targetIds {
				if _, ok := qw.answered[id]; !ok {
					qw.buf = append(qw.buf, id)
				}
			}
			qw.mu.Unlock()

			if len(qw.buf) == 0 {
				qw.reconnectFailed(targets, wsConnMap)
				return nil, false
			}
			qw.timer.Reset(RESEND_INTERVAL)
			qw.sendMessages(qw.buf, message, wsConnMap)

		case <-ctx.Done():
			qw.reconnectFailed(targets, wsConnMap)

			// partial result so the caller can tell who answered before the deadline
			qw.mu.Lock()
			out := make(map[string][]byte, len(qw.responses))
			for k, v := range qw.responses {
				out[k] = v
			}
			qw.mu.Unlock()
			return out, false
		}
	}
}

func getWriteMu(id string) *sync.Mutex {
	if m, ok := WEBSOCKET_WRITE_MUTEX.Load(id); ok {
		return m.(*sync.Mutex)
	}
	m := &sync.Mutex{}
	actual, _ := WEBSOCKET_WRITE_MUTEX.LoadOrStore(id, m)
	return actual.(*sync.Mutex)
}

func (qw *QuorumWaiter) reconnectFailed(targets map[string]structures.PeerInfo, wsConnMap map[string]*websocket.Conn) {
	qw.mu.Lock()
	failedCopy := make([]string, 0, len(qw.failed))
	for id := range qw.failed {
		failedCopy = append(failedCopy, id)
	}
	// reset failed set for the next round
	for k := range qw.failed {
		delete(qw.failed, k)
	}
	qw.mu.Unlock()

	for _, id := range failedCopy {

		peer, ok := targets[id]

		if !ok {
			continue
		}

		conn := DialPeer(peer)

		if conn == nil {
			continue
		}

		WEBSOCKET_CONNECTION_MUTEX.Lock()

		wsConnMap[id] = conn

		WEBSOCKET_CONNECTION_MUTEX.Unlock()

	}
}

func (qw *QuorumWaiter) sendMessages(targets []string, msg []byte, wsConnMap map[string]*websocket.Conn) {
	for _, id := range targets {
		// Read connection from the shared map under RLock
		WEBSOCKET_CONNECTION_MUTEX.RLock()
		conn, ok := wsConnMap[id]
		WEBSOCKET_CONNECTION_MUTEX.RUnlock()
		if !ok || conn == nil {
			// Mark as failed so we try to reconnect after the round
			qw.mu.Lock()
			qw.failed[id] = struct{}{}
			qw.mu.Unlock()
			continue
		}

		go func(id string, c *websocket.Conn) {
			// Single-writer guard for this websocket
			wmu := getWriteMu(id)
			wmu.Lock()
			err := c.WriteMessage(websocket.TextMessage, msg)
			wmu.Unlock()
			if err != nil {
				// Mark as failed and remove the connection safely
				qw.mu.Lock()
				qw.failed[id] = struct{}{}
				qw.mu.Unlock()

				WEBSOCKET_CONNECTION_MUTEX.Lock()
				_ = c.Close()
				delete(wsConnMap, id)
				WEBSOCKET_CONNECTION_MUTEX.Unlock()
				return
			}

			// Short read deadline for reply
			_ = c.SetReadDeadline(time.Now().Add(ACK_READ_DEADLINE))
			_, raw, err := c.ReadMessage()
			if err != nil {
				// Mark as failed and remove the connection safely
				qw.mu.Lock()
				qw.failed[id] = struct{}{}
				qw.mu.Unlock()

				WEBSOCKET_CONNECTION_MUTEX.Lock()
				_ = c.Close()
				delete(wsConnMap, id)
				WEBSOCKET_CONNECTION_MUTEX.Unlock()
				return
			}

			select {
			case qw.responseCh <- QuorumResponse{id: id, msg: raw}:
			case <-qw.done:
			}
		}(id, conn)
	}
}
