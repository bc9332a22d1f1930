package network

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ash/internal/vm"

	"github.com/gorilla/websocket"
)

// WebSocket is grounded on the teacher's internal/network websocket.go/
// websocket_server.go: both already key live connections by a generated
// string ID in a mutex-guarded registry rather than exposing the
// *websocket.Conn itself, which is exactly the handle-by-ID shape this
// collaborator needs in place of an object kind for opaque connections.
// Each Ash-visible connection/server is therefore its registry ID, not
// an instance, matching how internal/stdlib/random and internal/stdlib/
// file represent handle-like state with no backing object kind.
type wsConn struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	closed   bool
	messages chan []byte
}

type wsServer struct {
	server     *http.Server
	mu         sync.Mutex
	clients    map[string]*wsConn
	newClients chan string
}

var (
	wsIDs     uint64
	wsMu      sync.RWMutex
	wsConns   = make(map[string]*wsConn)
	wsServers = make(map[string]*wsServer)
)

func nextWSID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, atomic.AddUint64(&wsIDs, 1))
}

func installWebSocket(s *vm.State) {
	class := s.NewClass("WebSocket", nil)
	class.IsNative = true

	staticMethod(s, class, "connect", wsConnect)
	staticMethod(s, class, "send", wsSend)
	staticMethod(s, class, "sendBinary", wsSendBinary)
	staticMethod(s, class, "receive", wsReceive)
	staticMethod(s, class, "ping", wsPing)
	staticMethod(s, class, "close", wsClose)
	staticMethod(s, class, "listen", wsListen)
	staticMethod(s, class, "accept", wsAccept)
	staticMethod(s, class, "closeServer", wsCloseServer)

	s.DefineGlobal("WebSocket", vm.ObjectValue(class))
}

func wsConnect(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "WebSocket.connect")
	if err != nil {
		return vm.Value{}, err
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.connect: %v", err)
	}

	c := &wsConn{conn: conn, messages: make(chan []byte, 100)}
	id := nextWSID("ws")

	wsMu.Lock()
	wsConns[id] = c
	wsMu.Unlock()

	go readMessages(c)

	return state.NewString(id), nil
}

func wsSend(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.send")
	if err != nil {
		return vm.Value{}, err
	}
	message, err := state.CheckString(args, 1, "WebSocket.send")
	if err != nil {
		return vm.Value{}, err
	}
	c, err := lookupConn(state, id, "WebSocket.send")
	if err != nil {
		return vm.Value{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return vm.Value{}, state.RuntimeError("WebSocket.send: connection %s is closed", id)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.send: %v", err)
	}
	return vm.Null, nil
}

func wsSendBinary(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.sendBinary")
	if err != nil {
		return vm.Value{}, err
	}
	if len(args) < 2 || !args[1].IsArray() {
		return vm.Value{}, state.RuntimeError("WebSocket.sendBinary expects an array of byte values")
	}
	elements := args[1].AsArray().Elements
	data := make([]byte, len(elements))
	for i, el := range elements {
		if !el.IsNumber() {
			return vm.Value{}, state.RuntimeError("WebSocket.sendBinary: element %d is not a number", i)
		}
		data[i] = byte(int(el.AsNumber()))
	}

	c, err := lookupConn(state, id, "WebSocket.sendBinary")
	if err != nil {
		return vm.Value{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return vm.Value{}, state.RuntimeError("WebSocket.sendBinary: connection %s is closed", id)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.sendBinary: %v", err)
	}
	return vm.Null, nil
}

func wsReceive(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.receive")
	if err != nil {
		return vm.Value{}, err
	}
	timeout := 30 * time.Second
	if len(args) > 1 {
		seconds, err := state.CheckNumber(args, 1, "WebSocket.receive")
		if err != nil {
			return vm.Value{}, err
		}
		timeout = time.Duration(seconds * float64(time.Second))
	}

	c, err := lookupConn(state, id, "WebSocket.receive")
	if err != nil {
		return vm.Value{}, err
	}

	select {
	case msg, ok := <-c.messages:
		if !ok {
			return vm.Null, nil
		}
		return state.NewString(string(msg)), nil
	case <-time.After(timeout):
		return vm.Null, nil
	}
}

func wsPing(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.ping")
	if err != nil {
		return vm.Value{}, err
	}
	c, err := lookupConn(state, id, "WebSocket.ping")
	if err != nil {
		return vm.Value{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return vm.Value{}, state.RuntimeError("WebSocket.ping: connection %s is closed", id)
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.ping: %v", err)
	}
	return vm.Null, nil
}

func wsClose(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.close")
	if err != nil {
		return vm.Value{}, err
	}

	wsMu.Lock()
	c, exists := wsConns[id]
	if exists {
		delete(wsConns, id)
	}
	wsMu.Unlock()
	if !exists {
		return vm.Value{}, state.RuntimeError("WebSocket.close: connection %s not found", id)
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err := c.conn.Close(); err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.close: %v", err)
	}
	return vm.Null, nil
}

// wsListen starts a WebSocket upgrade server in the background and
// returns its registry ID. New client connections queue up behind
// WebSocket.accept(serverId) the same way the teacher's NewClients
// channel feeds a server's accept loop.
func wsListen(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	address, err := state.CheckString(args, 0, "WebSocket.listen")
	if err != nil {
		return vm.Value{}, err
	}
	port, err := state.CheckNumber(args, 1, "WebSocket.listen")
	if err != nil {
		return vm.Value{}, err
	}

	srv := &wsServer{
		clients:    make(map[string]*wsConn),
		newClients: make(chan string, 100),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &wsConn{conn: conn, messages: make(chan []byte, 100)}
		id := nextWSID("ws_client")

		wsMu.Lock()
		wsConns[id] = c
		wsMu.Unlock()
		srv.mu.Lock()
		srv.clients[id] = c
		srv.mu.Unlock()

		select {
		case srv.newClients <- id:
		default:
		}
		go readMessages(c)
	})

	srv.server = &http.Server{Addr: fmt.Sprintf("%s:%d", address, int(port)), Handler: mux}
	go srv.server.ListenAndServe()

	id := nextWSID("ws_server")
	wsMu.Lock()
	wsServers[id] = srv
	wsMu.Unlock()

	return state.NewString(id), nil
}

func wsAccept(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.accept")
	if err != nil {
		return vm.Value{}, err
	}
	timeout := 30 * time.Second
	if len(args) > 1 {
		seconds, err := state.CheckNumber(args, 1, "WebSocket.accept")
		if err != nil {
			return vm.Value{}, err
		}
		timeout = time.Duration(seconds * float64(time.Second))
	}

	wsMu.RLock()
	srv, exists := wsServers[id]
	wsMu.RUnlock()
	if !exists {
		return vm.Value{}, state.RuntimeError("WebSocket.accept: server %s not found", id)
	}

	select {
	case clientID := <-srv.newClients:
		return state.NewString(clientID), nil
	case <-time.After(timeout):
		return vm.Null, nil
	}
}

func wsCloseServer(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	id, err := state.CheckString(args, 0, "WebSocket.closeServer")
	if err != nil {
		return vm.Value{}, err
	}
	wsMu.Lock()
	srv, exists := wsServers[id]
	if exists {
		delete(wsServers, id)
	}
	wsMu.Unlock()
	if !exists {
		return vm.Value{}, state.RuntimeError("WebSocket.closeServer: server %s not found", id)
	}
	if err := srv.server.Close(); err != nil {
		return vm.Value{}, state.RuntimeError("WebSocket.closeServer: %v", err)
	}
	return vm.Null, nil
}

func lookupConn(state *vm.State, id, who string) (*wsConn, error) {
	wsMu.RLock()
	c, exists := wsConns[id]
	wsMu.RUnlock()
	if !exists {
		return nil, state.RuntimeError("%s: connection %s not found", who, id)
	}
	return c, nil
}

// readMessages drains one connection's reader into its buffered channel
// until the socket errors or closes, the same background-goroutine shape
// the teacher's WebSocketConn.readMessages runs.
func readMessages(c *wsConn) {
	defer close(c.messages)
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			select {
			case c.messages <- message:
			default:
				<-c.messages
				c.messages <- message
			}
		}
	}
}
