// Package network installs the Network and WebSocket collaborators.
// lit_network.c models an HTTP request as a userdata-backed instance
// wrapping a raw socket (`new NetworkRequest(url, headers, body)` then
// `.write()`/`.read()` in a loop); this object model has no userdata
// object kind, and the teacher's own internal/network package already
// reimplements the same HTTP exchange on top of net/http as one-shot
// calls (NetworkModule.HTTPGet/HTTPPost/HTTPRequest). Network is
// adapted from that teacher code into the static-only collaborator
// shape the rest of this package's siblings use, returning a map of
// status/headers/body instead of the teacher's *HTTPResponse struct.
package network

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"ash/internal/vm"
)

// Install builds the Network class and binds it as a global.
func Install(s *vm.State) {
	class := s.NewClass("Network", nil)
	class.IsNative = true

	staticMethod(s, class, "get", networkGet)
	staticMethod(s, class, "post", networkPost)
	staticMethod(s, class, "put", networkPut)
	staticMethod(s, class, "delete", networkDelete)
	staticMethod(s, class, "request", networkRequest)
	staticMethod(s, class, "jsonRequest", networkJSONRequest)
	staticMethod(s, class, "download", networkDownload)

	s.DefineGlobal("Network", vm.ObjectValue(class))

	installWebSocket(s)
}

func networkGet(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "Network.get")
	if err != nil {
		return vm.Value{}, err
	}
	return doRequest(state, "GET", url, nil, nil)
}

func networkPost(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "Network.post")
	if err != nil {
		return vm.Value{}, err
	}
	body, headers, err := bodyAndHeaders(state, args, 1, "Network.post")
	if err != nil {
		return vm.Value{}, err
	}
	return doRequest(state, "POST", url, headers, body)
}

func networkPut(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "Network.put")
	if err != nil {
		return vm.Value{}, err
	}
	body, headers, err := bodyAndHeaders(state, args, 1, "Network.put")
	if err != nil {
		return vm.Value{}, err
	}
	return doRequest(state, "PUT", url, headers, body)
}

func networkDelete(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "Network.delete")
	if err != nil {
		return vm.Value{}, err
	}
	return doRequest(state, "DELETE", url, nil, nil)
}

func networkRequest(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	method, err := state.CheckString(args, 0, "Network.request")
	if err != nil {
		return vm.Value{}, err
	}
	url, err := state.CheckString(args, 1, "Network.request")
	if err != nil {
		return vm.Value{}, err
	}
	body, headers, err := bodyAndHeaders(state, args, 2, "Network.request")
	if err != nil {
		return vm.Value{}, err
	}
	return doRequest(state, strings.ToUpper(method), url, headers, body)
}

func networkJSONRequest(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	method, err := state.CheckString(args, 0, "Network.jsonRequest")
	if err != nil {
		return vm.Value{}, err
	}
	url, err := state.CheckString(args, 1, "Network.jsonRequest")
	if err != nil {
		return vm.Value{}, err
	}
	var payload []byte
	if len(args) > 2 {
		goValue, err := toGo(state, args[2])
		if err != nil {
			return vm.Value{}, err
		}
		payload, err = json.Marshal(goValue)
		if err != nil {
			return vm.Value{}, state.RuntimeError("Network.jsonRequest: %v", err)
		}
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	return doRequest(state, strings.ToUpper(method), url, headers, payload)
}

func networkDownload(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	url, err := state.CheckString(args, 0, "Network.download")
	if err != nil {
		return vm.Value{}, err
	}
	result, err := doRequest(state, "GET", url, nil, nil)
	if err != nil {
		return vm.Value{}, err
	}
	m := result.AsMap()
	status, _ := m.Get(state.NewString("status"))
	if status.AsNumber() != 200 {
		return vm.Value{}, state.RuntimeError("Network.download: status %v", status.AsNumber())
	}
	body, _ := m.Get(state.NewString("body"))
	return body, nil
}

func bodyAndHeaders(state *vm.State, args []vm.Value, start int, who string) ([]byte, map[string]string, error) {
	var body []byte
	if len(args) > start && args[start].IsString() {
		body = []byte(args[start].AsString().Chars)
	}
	var headers map[string]string
	if len(args) > start+1 && args[start+1].IsMap() {
		headers = make(map[string]string)
		m := args[start+1].AsMap()
		for _, key := range m.Keys() {
			keyStr, err := state.ToString(key)
			if err != nil {
				return nil, nil, err
			}
			value, _ := m.Get(key)
			valueStr, err := state.ToString(value)
			if err != nil {
				return nil, nil, err
			}
			headers[keyStr] = valueStr
		}
	}
	return body, headers, nil
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doRequest performs one HTTP exchange and folds it into an Ash map
// with status/headers/body fields, the shape networkRequest_read builds
// in the original by hand-parsing the raw response off the wire.
func doRequest(state *vm.State, method, url string, headers map[string]string, body []byte) (vm.Value, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return vm.Value{}, state.RuntimeError("%s: %v", method, err)
	}

	req.Header.Set("User-Agent", "ash/1.0")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if _, ok := headers["Content-Type"]; !ok && body != nil {
		if json.Valid(body) {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "text/plain")
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return vm.Value{}, state.RuntimeError("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return vm.Value{}, state.RuntimeError("%s %s: reading response: %v", method, url, err)
	}

	headersValue := state.NewMap()
	headersMap := headersValue.AsMap()
	for key, values := range resp.Header {
		headersMap.Set(state.NewString(key), state.NewString(strings.Join(values, ", ")))
	}

	result := state.NewMap()
	m := result.AsMap()
	m.Set(state.NewString("status"), vm.Number(float64(resp.StatusCode)))
	m.Set(state.NewString("statusText"), state.NewString(resp.Status))
	m.Set(state.NewString("headers"), headersValue)
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		var decoded interface{}
		if err := json.Unmarshal(respBody, &decoded); err == nil {
			m.Set(state.NewString("body"), fromGo(state, decoded))
			return result, nil
		}
	}
	m.Set(state.NewString("body"), state.NewString(string(respBody)))
	return result, nil
}

// fromGo/toGo mirror internal/stdlib/jsonlib's converters; duplicated
// rather than imported to keep Network free of a dependency on a sibling
// stdlib package for two small private helpers.
func fromGo(state *vm.State, v interface{}) vm.Value {
	switch x := v.(type) {
	case nil:
		return vm.Null
	case bool:
		return vm.Bool(x)
	case float64:
		return vm.Number(x)
	case string:
		return state.NewString(x)
	case []interface{}:
		elements := make([]vm.Value, len(x))
		for i, el := range x {
			elements[i] = fromGo(state, el)
		}
		return state.NewArray(elements)
	case map[string]interface{}:
		mapValue := state.NewMap()
		m := mapValue.AsMap()
		for k, v := range x {
			m.Set(state.NewString(k), fromGo(state, v))
		}
		return mapValue
	}
	return vm.Null
}

func toGo(state *vm.State, v vm.Value) (interface{}, error) {
	switch {
	case v.IsNull():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsNumber():
		return v.AsNumber(), nil
	case v.IsString():
		return v.AsString().Chars, nil
	case v.IsArray():
		elements := v.AsArray().Elements
		out := make([]interface{}, len(elements))
		for i, el := range elements {
			converted, err := toGo(state, el)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case v.IsMap():
		m := v.AsMap()
		out := make(map[string]interface{}, m.Len())
		for _, key := range m.Keys() {
			keyStr, err := state.ToString(key)
			if err != nil {
				return nil, err
			}
			value, _ := m.Get(key)
			converted, err := toGo(state, value)
			if err != nil {
				return nil, err
			}
			out[keyStr] = converted
		}
		return out, nil
	}
	return nil, state.RuntimeError("Network: value has no JSON representation")
}

func staticMethod(s *vm.State, class *vm.ObjClass, name string, fn vm.NativeFn) {
	class.StaticFields.Set(s.Intern(name), s.NewNativeMethod(name, fn))
}
