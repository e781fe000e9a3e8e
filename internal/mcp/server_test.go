package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func dispatch(t *testing.T, s *Server, req *JSONRPCRequest) JSONRPCResponse {
	t.Helper()

	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	s.handleRequest(context.Background(), writer, req)

	var resp JSONRPCResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v (%q)", err, buf.String())
	}
	return resp
}

func TestHandleInitialize(t *testing.T) {
	t.Parallel()

	s := NewServer()
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp.Error != nil {
		t.Fatalf("initialize returned error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("initialize result has unexpected shape: %T", resp.Result)
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestHandleToolsList(t *testing.T) {
	t.Parallel()

	s := NewServer()
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"})

	if resp.Error != nil {
		t.Fatalf("tools/list returned error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	tools, ok := result["tools"].([]interface{})
	if !ok {
		t.Fatalf("tools/list result missing tools array")
	}

	names := make(map[string]bool)
	for _, raw := range tools {
		tool := raw.(map[string]interface{})
		names[tool["name"].(string)] = true
	}

	for _, want := range []string{
		"related_files", "hybrid_context", "file_imports",
		"code_chunks", "glob_files", "grep_search", "search_code",
	} {
		if !names[want] {
			t.Errorf("tool %q not listed", want)
		}
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	t.Parallel()

	s := NewServer()
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 3, Method: "nope"})

	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("unknown method error = %+v, want code -32601", resp.Error)
	}
}

func TestHandleUnknownTool(t *testing.T) {
	t.Parallel()

	s := NewServer()
	params, _ := json.Marshal(map[string]interface{}{"name": "nope", "arguments": map[string]string{}})
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 4, Method: "tools/call", Params: params})

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("unknown tool error = %+v, want code -32602", resp.Error)
	}
}

func TestFileImportsTool(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.py")
	if err := os.WriteFile(path, []byte("from pkg.sub import x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewServer()
	params, _ := json.Marshal(map[string]interface{}{
		"name":      "file_imports",
		"arguments": map[string]string{"file": path},
	})
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 5, Method: "tools/call", Params: params})

	if resp.Error != nil {
		t.Fatalf("file_imports returned error: %+v", resp.Error)
	}
	text := extractText(t, resp)
	var specs []string
	if err := json.Unmarshal([]byte(text), &specs); err != nil {
		t.Fatalf("tool text is not a JSON string list: %v (%q)", err, text)
	}
	if len(specs) != 1 || specs[0] != "pkg.sub" {
		t.Fatalf("file_imports = %v, want [pkg.sub]", specs)
	}
}

func TestGlobFilesTool(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewServer()
	params, _ := json.Marshal(map[string]interface{}{
		"name":      "glob_files",
		"arguments": map[string]string{"pattern": "*.go", "root": dir},
	})
	resp := dispatch(t, s, &JSONRPCRequest{JSONRPC: "2.0", ID: 6, Method: "tools/call", Params: params})

	if resp.Error != nil {
		t.Fatalf("glob_files returned error: %+v", resp.Error)
	}
	text := extractText(t, resp)
	var matches []string
	if err := json.Unmarshal([]byte(text), &matches); err != nil {
		t.Fatalf("tool text is not a JSON string list: %v (%q)", err, text)
	}
	if len(matches) != 1 {
		t.Fatalf("glob_files = %v, want one match", matches)
	}
}

func extractText(t *testing.T, resp JSONRPCResponse) string {
	t.Helper()

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result shape: %T", resp.Result)
	}
	content, ok := result["content"].([]interface{})
	if !ok || len(content) == 0 {
		t.Fatalf("result missing content: %v", result)
	}
	entry := content[0].(map[string]interface{})
	text, ok := entry["text"].(string)
	if !ok {
		t.Fatalf("content entry missing text: %v", entry)
	}
	return text
}
