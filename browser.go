package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// BrowserHost is the tab/window capability the pipeline drives. The live
// implementation is the extension bridge; tests substitute fakes.
type BrowserHost interface {
	ListTabs(ctx context.Context) ([]Tab, error)
	Ungroup(ctx context.Context, handles []int) error
	Group(ctx context.Context, handles []int) (int, error)
	UpdateGroup(ctx context.Context, groupID int, title, color string, collapsed bool) error
}

// bridgeMessage is the single wire shape in both directions.
// Daemon -> extension commands carry ID+Action+Params; the extension answers
// with ID+Result or ID+Error. Extension -> daemon requests (popup actions)
// carry ID+Action; unsolicited events carry Event only.
type bridgeMessage struct {
	ID     int64           `json:"id,omitempty"`
	Action string          `json:"action,omitempty"`
	Event  string          `json:"event,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type tabAttachedEvent struct {
	Tab   Tab       `json:"tab"`
	Group GroupInfo `json:"group"`
}

// ExtensionBridge serves the WebSocket endpoint the browser extension
// connects to, and implements BrowserHost over that connection. A single
// extension connection is active at a time; a new connection replaces the
// old one.
type ExtensionBridge struct {
	callTimeout time.Duration
	upgrader    websocket.Upgrader

	// Request handlers, wired once before serving starts.
	OnOrganize    func() OrganizeResult
	OnUsageStats  func() UsageStats
	OnTabAttached func(tab Tab, group GroupInfo)

	mu      sync.Mutex // guards conn, pending, nextID
	conn    *websocket.Conn
	pending map[int64]chan bridgeMessage
	nextID  int64

	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer
}

func NewExtensionBridge(callTimeout time.Duration) *ExtensionBridge {
	return &ExtensionBridge{
		callTimeout: callTimeout,
		pending:     make(map[int64]chan bridgeMessage),
		upgrader: websocket.Upgrader{
			// The daemon binds to localhost; the extension connects without
			// a meaningful Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (b *ExtensionBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge upgrade error: %v", err)
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()

	log.Printf("bridge: extension connected from %s", r.RemoteAddr)
	b.readLoop(conn)
}

func (b *ExtensionBridge) readLoop(conn *websocket.Conn) {
	for {
		var msg bridgeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("bridge: extension disconnected: %v", err)
			b.dropConn(conn)
			return
		}

		switch {
		case msg.Event != "":
			b.handleEvent(msg)
		case msg.Action != "":
			// Popup requests can trigger a full organize run; never block
			// the read loop on them.
			go b.handleRequest(conn, msg)
		case msg.ID != 0:
			b.deliverReply(msg)
		}
	}
}

// dropConn clears the connection and fails every in-flight call so callers
// do not hang until their timeout.
func (b *ExtensionBridge) dropConn(conn *websocket.Conn) {
	conn.Close()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		b.conn = nil
	}
	for id, ch := range b.pending {
		ch <- bridgeMessage{ID: id, Error: "extension disconnected"}
		delete(b.pending, id)
	}
}

func (b *ExtensionBridge) deliverReply(msg bridgeMessage) {
	b.mu.Lock()
	ch, ok := b.pending[msg.ID]
	if ok {
		delete(b.pending, msg.ID)
	}
	b.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (b *ExtensionBridge) handleEvent(msg bridgeMessage) {
	switch msg.Event {
	case "tabAttached":
		var ev tabAttachedEvent
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			log.Printf("bridge: bad tabAttached event: %v", err)
			return
		}
		if b.OnTabAttached != nil {
			b.OnTabAttached(ev.Tab, ev.Group)
		}
	default:
		log.Printf("bridge: unknown event %q", msg.Event)
	}
}

func (b *ExtensionBridge) handleRequest(conn *websocket.Conn, msg bridgeMessage) {
	var result any
	switch msg.Action {
	case "ping":
		result = map[string]string{"status": "ready"}
	case "organizeTabs":
		if b.OnOrganize == nil {
			b.replyError(conn, msg.ID, "organize not available")
			return
		}
		result = b.OnOrganize()
	case "getUsageStats":
		if b.OnUsageStats == nil {
			b.replyError(conn, msg.ID, "usage stats not available")
			return
		}
		result = b.OnUsageStats()
	default:
		b.replyError(conn, msg.ID, fmt.Sprintf("unknown action %q", msg.Action))
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		b.replyError(conn, msg.ID, "internal error")
		return
	}
	b.writeJSON(conn, bridgeMessage{ID: msg.ID, Result: raw})
}

func (b *ExtensionBridge) replyError(conn *websocket.Conn, id int64, reason string) {
	b.writeJSON(conn, bridgeMessage{ID: id, Error: reason})
}

func (b *ExtensionBridge) writeJSON(conn *websocket.Conn, msg bridgeMessage) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// call issues one command to the extension and waits for the matching reply.
func (b *ExtensionBridge) call(ctx context.Context, action string, params any, out any) error {
	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return fmt.Errorf("no extension connected")
	}
	b.nextID++
	id := b.nextID
	ch := make(chan bridgeMessage, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			b.forget(id)
			return fmt.Errorf("marshaling %s params: %w", action, err)
		}
		raw = data
	}

	if err := b.writeJSON(conn, bridgeMessage{ID: id, Action: action, Params: raw}); err != nil {
		b.forget(id)
		return fmt.Errorf("sending %s: %w", action, err)
	}

	timer := time.NewTimer(b.callTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return fmt.Errorf("%s failed: %s", action, reply.Error)
		}
		if out != nil && len(reply.Result) > 0 {
			if err := json.Unmarshal(reply.Result, out); err != nil {
				return fmt.Errorf("decoding %s result: %w", action, err)
			}
		}
		return nil
	case <-ctx.Done():
		b.forget(id)
		return ctx.Err()
	case <-timer.C:
		b.forget(id)
		return fmt.Errorf("%s timed out after %s", action, b.callTimeout)
	}
}

func (b *ExtensionBridge) forget(id int64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *ExtensionBridge) ListTabs(ctx context.Context) ([]Tab, error) {
	var tabs []Tab
	err := b.call(ctx, "listTabs", nil, &tabs)
	return tabs, err
}

func (b *ExtensionBridge) Ungroup(ctx context.Context, handles []int) error {
	return b.call(ctx, "ungroup", map[string]any{"tabIds": handles}, nil)
}

func (b *ExtensionBridge) Group(ctx context.Context, handles []int) (int, error) {
	var res struct {
		GroupID int `json:"groupId"`
	}
	err := b.call(ctx, "group", map[string]any{"tabIds": handles}, &res)
	return res.GroupID, err
}

func (b *ExtensionBridge) UpdateGroup(ctx context.Context, groupID int, title, color string, collapsed bool) error {
	return b.call(ctx, "updateGroup", map[string]any{
		"groupId":   groupID,
		"title":     title,
		"color":     color,
		"collapsed": collapsed,
	}, nil)
}
