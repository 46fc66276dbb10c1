package mcpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hylla/cardflow/internal/adapters/storage/sqlite"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// newTestServer starts the MCP handler over a real service backed by in-memory sqlite.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(repo, nil, func() time.Time { return now }, app.ServiceConfig{})

	handler, err := NewHandler(Config{}, svc)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "cardflow-test",
				"version": "1.0.0",
			},
		},
	}
}

// callTool initializes, invokes one tool and returns its result payload.
func callTool(t *testing.T, server *httptest.Server, name string, args map[string]any) map[string]any {
	t.Helper()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(2, name, args))
	if resp.Result == nil {
		t.Fatalf("%s returned no result", name)
	}
	return resp.Result
}

// mustSucceed fails the test when a tool result is flagged as an error.
func mustSucceed(t *testing.T, name string, result map[string]any) map[string]any {
	t.Helper()
	if isError, _ := result["isError"].(bool); isError {
		t.Fatalf("%s failed: %s", name, toolResultText(t, result))
	}
	return toolResultStructured(t, result)
}

// callToolResultText decodes the first textual content block from a CallToolResult.
func callToolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatalf("result = nil, want non-nil")
	}
	if len(result.Content) == 0 {
		t.Fatalf("result content is empty")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] has unexpected type %T", result.Content[0])
	}
	return text.Text
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	server := newTestServer(t)

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersEngineTools verifies tool discovery lists the engine operations.
func TestHandlerRegistersEngineTools(t *testing.T) {
	server := newTestServer(t)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"cardflow.create_board",
		"cardflow.create_card",
		"cardflow.move_card",
		"cardflow.set_completion",
		"cardflow.add_dependency",
		"cardflow.remove_dependency",
		"cardflow.get_dependencies",
		"cardflow.convert_checklist_item",
		"cardflow.toggle_checklist_item",
		"cardflow.delete_card",
		"cardflow.release_version",
		"cardflow.import_sheet",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %s: %#v", required, toolNames)
		}
	}
}

// TestHandlerDependencyToolFlow drives a blocker edge through the MCP tools.
func TestHandlerDependencyToolFlow(t *testing.T) {
	server := newTestServer(t)

	created := mustSucceed(t, "create_board", callTool(t, server, "cardflow.create_board", map[string]any{"name": "Roadmap"}))
	categories, _ := created["categories"].([]any)
	if len(categories) != 5 {
		t.Fatalf("expected 5 categories, got %#v", created["categories"])
	}
	todo, _ := categories[1].(map[string]any)
	if todo["name"] != "Todo" {
		t.Fatalf("expected Todo second, got %#v", todo)
	}

	blocker := mustSucceed(t, "create_card", callTool(t, server, "cardflow.create_card", map[string]any{
		"category_id": todo["id"],
		"name":        "Schema",
	}))
	blocked := mustSucceed(t, "create_card", callTool(t, server, "cardflow.create_card", map[string]any{
		"category_id": todo["id"],
		"name":        "API",
		"priority":    "high",
	}))
	if blocked["priority"] != "high" || blocked["progress"] != float64(10) {
		t.Fatalf("unexpected card %#v", blocked)
	}

	mustSucceed(t, "add_dependency", callTool(t, server, "cardflow.add_dependency", map[string]any{
		"blocker_id": blocker["id"],
		"blocked_id": blocked["id"],
		"actor":      "jane",
	}))

	result := callTool(t, server, "cardflow.set_completion", map[string]any{"card_id": blocked["id"], "checked": true})
	if isError, _ := result["isError"].(bool); !isError {
		t.Fatalf("expected completion to be rejected, got %#v", result)
	}
	if text := toolResultText(t, result); !strings.HasPrefix(text, "precondition_failed:") {
		t.Fatalf("text = %q, want precondition_failed prefix", text)
	}

	deps := mustSucceed(t, "get_dependencies", callTool(t, server, "cardflow.get_dependencies", map[string]any{"card_id": blocked["id"]}))
	blockers, _ := deps["blockers"].([]any)
	if len(blockers) != 1 {
		t.Fatalf("expected one blocker, got %#v", deps)
	}

	mustSucceed(t, "remove_dependency", callTool(t, server, "cardflow.remove_dependency", map[string]any{
		"blocker_id": blocker["id"],
		"blocked_id": blocked["id"],
	}))
	done := mustSucceed(t, "set_completion", callTool(t, server, "cardflow.set_completion", map[string]any{"card_id": blocked["id"], "checked": true}))
	if done["is_completed"] != true || done["progress"] != float64(100) {
		t.Fatalf("unexpected completed card %#v", done)
	}

	feed := mustSucceed(t, "list_activities", callTool(t, server, "cardflow.list_activities", map[string]any{"card_id": blocked["id"]}))
	if activities, _ := feed["activities"].([]any); len(activities) < 3 {
		t.Fatalf("expected create, dependency and completion activities, got %#v", feed)
	}
}

// TestHandlerMissingCardMapsToNotFound verifies engine errors surface with their kind.
func TestHandlerMissingCardMapsToNotFound(t *testing.T) {
	server := newTestServer(t)
	result := callTool(t, server, "cardflow.get_card", map[string]any{"card_id": 404})
	if isError, _ := result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", result["isError"])
	}
	if text := toolResultText(t, result); !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("text = %q, want not_found prefix", text)
	}
}

// TestNewHandlerRequiresService verifies constructor validation.
func TestNewHandlerRequiresService(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies deterministic config defaults and path normalization.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{
				ServerName:    "cardflow",
				ServerVersion: "dev",
				EndpointPath:  "/mcp",
				DefaultActor:  "mcp",
			},
		},
		{
			name: "trimmed values and slash prefix",
			in: Config{
				ServerName:    " cardflow-server ",
				ServerVersion: " v1.2.3 ",
				EndpointPath:  "custom/path",
				DefaultActor:  " jane ",
			},
			want: Config{
				ServerName:    "cardflow-server",
				ServerVersion: "v1.2.3",
				EndpointPath:  "/custom/path",
				DefaultActor:  "jane",
			},
		},
		{
			name: "endpoint trim of repeated slashes",
			in: Config{
				EndpointPath: "///mcp///",
			},
			want: Config{
				ServerName:    "cardflow",
				ServerVersion: "dev",
				EndpointPath:  "/mcp",
				DefaultActor:  "mcp",
			},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler paths fail closed with 503.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{
			name:    "nil receiver",
			handler: nil,
		},
		{
			name:    "missing inner http handler",
			handler: &Handler{},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()

			tt.handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
			if !strings.Contains(rec.Body.String(), "mcp handler unavailable") {
				t.Fatalf("body = %q, want mcp handler unavailable", rec.Body.String())
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "internal_error:"},
		{name: "validation", err: domain.ErrSelfDependency, wantPrefix: "validation_error:"},
		{name: "not found", err: app.ErrNotFound, wantPrefix: "not_found:"},
		{name: "exists", err: domain.ErrReverseDependencyExists, wantPrefix: "already_exists:"},
		{name: "precondition", err: domain.ErrIncompleteChecklist, wantPrefix: "precondition_failed:"},
		{name: "invariant", err: domain.ErrDoneCategoryMissing, wantPrefix: "invariant_violation:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			if got := callToolResultText(t, result); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}
