package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/talk2silicon/talk2browser/kit"
	"github.com/talk2silicon/talk2browser/recorder"
	"github.com/talk2silicon/talk2browser/script"
)

// RegisterMCP registers the session's planner-facing tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerNavigateTool(srv)
	s.registerClickTool(srv)
	s.registerFillTool(srv)
	s.registerSelectTool(srv)
	s.registerObserveTool(srv)
	s.registerModeTool(srv)
	s.registerGenerateScriptTool(srv)
	s.registerListSecretsTool(srv)
}

// enrich tags tool-call contexts with the session identity, a fresh request
// id, and the transport, so dispatch logging can tell MCP traffic from
// control-surface traffic and tie log lines to one tool call.
func (s *Session) enrich(ctx context.Context) context.Context {
	ctx = kit.WithSessionID(ctx, s.ID)
	ctx = kit.WithRequestID(ctx, newRequestID())
	return kit.WithTransport(ctx, "mcp")
}

// traceCalls logs every tool invocation with its request identity.
func (s *Session) traceCalls(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			s.log.Debug("tool call", "tool", tool, "request", kit.GetRequestID(ctx))
			return next(ctx, req)
		}
	}
}

// registerTool applies the session's shared middleware before handing an
// endpoint to the MCP transport.
func (s *Session) registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Chain(s.traceCalls(tool.Name))(endpoint), decode)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// actionResult is the structured outcome the planner receives for a
// dispatched action.
type actionResult struct {
	Seq    uint64 `json:"seq"`
	Type   string `json:"type"`
	PageID string `json:"page_id"`
	Target string `json:"target,omitempty"`
}

func toResult(rec recorder.Record) actionResult {
	return actionResult{Seq: rec.Seq, Type: string(rec.Type), PageID: rec.PageID, Target: rec.Target}
}

// --- navigate ---

type navigateRequest struct {
	URL string `json:"url"`
}

func (s *Session) registerNavigateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_navigate",
		Description: "Navigate the active page to a URL. The target must be inside the session allowlist.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Absolute http(s) URL"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*navigateRequest)
		rec, err := s.Dispatch(ctx, Action{Type: recorder.ActionNavigate, URL: r.URL})
		if err != nil {
			return nil, err
		}
		return toResult(rec), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r navigateRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: s.enrich}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

// --- click ---

type elementRequest struct {
	Hash    string `json:"hash"`
	Version uint64 `json:"version"`
	Value   string `json:"value,omitempty"`
}

func elementProps(extra map[string]any) map[string]any {
	props := map[string]any{
		"hash":    map[string]any{"type": "string", "description": "Element reference from browser_observe"},
		"version": map[string]any{"type": "integer", "description": "Snapshot version the reference came from"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

func (s *Session) decodeElement(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r elementRequest
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &r, EnrichCtx: s.enrich}, nil
}

func (s *Session) registerClickTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_click",
		Description: "Click an element on the active page, addressed by its reference hash.",
		InputSchema: inputSchema(elementProps(nil), []string{"hash", "version"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementRequest)
		rec, err := s.Dispatch(ctx, Action{Type: recorder.ActionClick, Hash: r.Hash, Version: r.Version})
		if err != nil {
			return nil, err
		}
		return toResult(rec), nil
	}

	s.registerTool(srv, tool, endpoint, s.decodeElement)
}

// --- fill ---

func (s *Session) registerFillTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_fill",
		Description: "Fill a field with a value. Use a ${NAME} placeholder for registered secrets; the real value never appears in results or logs.",
		InputSchema: inputSchema(elementProps(map[string]any{
			"value": map[string]any{"type": "string", "description": "Text to enter, may contain ${NAME} placeholders"},
		}), []string{"hash", "version", "value"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementRequest)
		rec, err := s.Dispatch(ctx, Action{Type: recorder.ActionFill, Hash: r.Hash, Version: r.Version, Value: r.Value})
		if err != nil {
			return nil, err
		}
		return toResult(rec), nil
	}

	s.registerTool(srv, tool, endpoint, s.decodeElement)
}

// --- select ---

func (s *Session) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_select",
		Description: "Select a dropdown option by its visible text.",
		InputSchema: inputSchema(elementProps(map[string]any{
			"value": map[string]any{"type": "string", "description": "Visible text of the option"},
		}), []string{"hash", "version", "value"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementRequest)
		rec, err := s.Dispatch(ctx, Action{Type: recorder.ActionSelect, Hash: r.Hash, Version: r.Version, Value: r.Value})
		if err != nil {
			return nil, err
		}
		return toResult(rec), nil
	}

	s.registerTool(srv, tool, endpoint, s.decodeElement)
}

// --- observe ---

func (s *Session) registerObserveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_observe",
		Description: "Summarize the active page: URL, title, interactive elements with reference hashes, and page content as markdown. Invalidates previous element references.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Observe(ctx)
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}, EnrichCtx: s.enrich}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

// --- mode ---

type modeRequest struct {
	Mode string `json:"mode,omitempty"`
}

type modeResult struct {
	Mode string `json:"mode"`
}

func (s *Session) registerModeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_mode",
		Description: "Get the current driving mode, or force a transition by passing \"agent\" or \"manual\".",
		InputSchema: inputSchema(map[string]any{
			"mode": map[string]any{"type": "string", "enum": []any{"agent", "manual"}, "description": "Omit to read the current mode"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*modeRequest)
		switch r.Mode {
		case "":
		case string(recorder.ModeAgent), string(recorder.ModeManual):
			if s.Recorder.Mode() == recorder.ModeManual && r.Mode == string(recorder.ModeAgent) {
				s.drainAllManual(ctx)
			}
			s.Recorder.SetMode(recorder.Mode(r.Mode))
			s.setCollectorMode(ctx, recorder.Mode(r.Mode))
		default:
			return nil, fmt.Errorf("unknown mode %q", r.Mode)
		}
		return modeResult{Mode: string(s.Recorder.Mode())}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r modeRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: s.enrich}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

// --- generate_script ---

type generateScriptRequest struct {
	Dialect string `json:"dialect"`
}

type generateScriptResult struct {
	Dialect string `json:"dialect"`
	Source  string `json:"source"`
	Actions int    `json:"actions"`
}

func (s *Session) registerGenerateScriptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_generate_script",
		Description: "Compile the recorded action log into an automation script. Placeholders are emitted as environment lookups.",
		InputSchema: inputSchema(map[string]any{
			"dialect": map[string]any{"type": "string", "enum": toAny(script.Names()), "description": "Target framework"},
		}, []string{"dialect"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*generateScriptRequest)
		records := s.Recorder.Snapshot()
		src, err := script.Emit(records, r.Dialect, s.Task)
		if err != nil {
			return nil, err
		}
		return generateScriptResult{Dialect: r.Dialect, Source: src, Actions: len(records)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r generateScriptRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r, EnrichCtx: s.enrich}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

// --- list_secrets ---

type listSecretsResult struct {
	Names []string `json:"names"`
}

func (s *Session) registerListSecretsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "browser_list_secrets",
		Description: "List the placeholder names available for browser_fill. Values are never exposed.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return listSecretsResult{Names: s.Vault.Names()}, nil
	}

	decode := func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: struct{}{}, EnrichCtx: s.enrich}, nil
	}

	s.registerTool(srv, tool, endpoint, decode)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
