package network_test

import (
	"fmt"
	"net"
	"testing"
	"time"

	"ash/internal/compiler"
	"ash/internal/lexer"
	"ash/internal/parser"
	"ash/internal/stdlib/network"
	"ash/internal/vm"
)

// freePort asks the OS for an ephemeral port, then immediately releases
// it so WebSocket.listen can bind it a moment later.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// runLine compiles and executes source against session, carrying
// top-level var bindings forward across calls the same way the REPL's
// session module does — this test threads `server`/`serverConn` across
// several lines.
func runLine(t *testing.T, state *vm.State, session *vm.ObjModule, source string) vm.Value {
	t.Helper()
	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	closure, errs := compiler.CompileREPLLine(state, session, stmts)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	session.MainFunction = closure
	result, err := state.RunModule(session)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return result
}

func TestWebSocketRoundTrip(t *testing.T) {
	port := freePort(t)
	state := vm.NewState()
	network.Install(state)
	session := &vm.ObjModule{
		Name:         state.Intern("ws-test"),
		Path:         "<test>",
		PrivateNames: make(map[string]int),
	}

	runLine(t, state, session, fmt.Sprintf(`
		var server = WebSocket.listen("127.0.0.1", %d)
	`, port))

	// give the listener a moment to actually bind before dialing it.
	time.Sleep(100 * time.Millisecond)

	clientResult := runLine(t, state, session, fmt.Sprintf(`
		var client = WebSocket.connect("ws://127.0.0.1:%d/")
		WebSocket.send(client, "hello from client")
		return client
	`, port))
	clientID, err := state.ToString(clientResult)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}

	received := runLine(t, state, session, `
		var serverConn = WebSocket.accept(server, 5)
		return WebSocket.receive(serverConn, 5)
	`)
	got, err := state.ToString(received)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "hello from client" {
		t.Errorf("got %q, want %q", got, "hello from client")
	}

	reply := runLine(t, state, session, fmt.Sprintf(`
		WebSocket.send(serverConn, "hello from server")
		return WebSocket.receive(%q, 5)
	`, clientID))
	got, err = state.ToString(reply)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "hello from server" {
		t.Errorf("got %q, want %q", got, "hello from server")
	}
}
