package network_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ash/internal/compiler"
	"ash/internal/lexer"
	"ash/internal/parser"
	"ash/internal/stdlib/network"
	"ash/internal/vm"
)

func eval(t *testing.T, source string) (vm.Value, *vm.State) {
	t.Helper()
	state := vm.NewState()
	network.Install(state)

	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	result, err := state.RunModule(module)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return result, state
}

func TestNetworkGetReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello")
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		var resp = Network.get(%q)
		return resp["status"]
	`, srv.URL)
	result, _ := eval(t, source)
	if !result.IsNumber() || result.AsNumber() != 200 {
		t.Errorf("expected status 200, got %v", result)
	}

	source = fmt.Sprintf(`
		var resp = Network.get(%q)
		return resp["body"]
	`, srv.URL)
	result, state := eval(t, source)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestNetworkGetDecodesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name": "ash"}`)
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		var resp = Network.get(%q)
		return resp["body"]["name"]
	`, srv.URL)
	result, state := eval(t, source)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "ash" {
		t.Errorf("got %q, want %q", got, "ash")
	}
}

func TestNetworkPostSendsBody(t *testing.T) {
	var receivedBody string
	var receivedMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		b, _ := io.ReadAll(r.Body)
		receivedBody = string(b)
		w.WriteHeader(201)
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		var resp = Network.post(%q, "payload")
		return resp["status"]
	`, srv.URL)
	result, _ := eval(t, source)
	if !result.IsNumber() || result.AsNumber() != 201 {
		t.Errorf("expected status 201, got %v", result)
	}
	if receivedMethod != "POST" {
		t.Errorf("expected POST, got %s", receivedMethod)
	}
	if receivedBody != "payload" {
		t.Errorf("expected body %q, got %q", "payload", receivedBody)
	}
}

func TestNetworkRequestCustomMethod(t *testing.T) {
	var receivedMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		Network.request("patch", %q)
		return true
	`, srv.URL)
	eval(t, source)
	if receivedMethod != "PATCH" {
		t.Errorf("expected PATCH, got %s", receivedMethod)
	}
}

func TestNetworkRequestHeaders(t *testing.T) {
	var receivedHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get("X-Test")
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		var headers = {"X-Test": "marker"}
		Network.post(%q, "", headers)
		return true
	`, srv.URL)
	eval(t, source)
	if receivedHeader != "marker" {
		t.Errorf("expected header to reach the server, got %q", receivedHeader)
	}
}

func TestNetworkJSONRequestEncodesPayload(t *testing.T) {
	var decoded map[string]interface{}
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&decoded)
	}))
	defer srv.Close()

	source := fmt.Sprintf(`
		var payload = {"count": 3}
		Network.jsonRequest("post", %q, payload)
		return true
	`, srv.URL)
	eval(t, source)
	if contentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", contentType)
	}
	if decoded["count"] != float64(3) {
		t.Errorf("expected decoded count 3, got %v", decoded["count"])
	}
}

func TestNetworkDownloadReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "file contents")
	}))
	defer srv.Close()

	source := fmt.Sprintf(`return Network.download(%q)`, srv.URL)
	result, state := eval(t, source)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "file contents" {
		t.Errorf("got %q, want %q", got, "file contents")
	}
}

func TestNetworkDownloadNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	state := vm.NewState()
	network.Install(state)
	source := fmt.Sprintf(`return Network.download(%q)`, srv.URL)
	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	if _, err := state.RunModule(module); err == nil {
		t.Fatal("expected an error for a non-200 download")
	}
}

func TestNetworkGetUnreachableHostIsError(t *testing.T) {
	state := vm.NewState()
	network.Install(state)
	source := `return Network.get("http://127.0.0.1:1")`
	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	if _, err := state.RunModule(module); err == nil {
		t.Fatal("expected an error connecting to a closed port")
	}
}
