package host

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/composer/kit"
)

// RegisterMCP publishes the controller's API as compose_* tools on srv.
func (c *Controller) RegisterMCP(srv *mcp.Server) {
	c.registerContentTool(srv)
	c.registerToggleTool(srv, "compose_toggle_style",
		"Toggle an inline style at the caret (BOLD, ITALIC, UNDERLINE, STRIKETHROUGH, CODE).", c.SetStyle)
	c.registerToggleTool(srv, "compose_toggle_block",
		"Toggle the type of the block under the caret (header-one, blockquote, unordered-list-item, ...).", c.SetBlockType)
	c.registerToggleTool(srv, "compose_special",
		"Run a special command: CLEAR, IndentIncrease or IndentDecrease.", c.SetSpecialType)
	c.registerLinkTool(srv)
	c.registerImageTool(srv)
	c.registerFocusTool(srv, "compose_focus", "Give input focus to the editor.", c.Focus)
	c.registerFocusTool(srv, "compose_blur", "Remove input focus from the editor.", c.Blur)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (c *Controller) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	sessionID := c.sessionID
	enrich := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decode(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			return kit.WithSessionID(ctx, sessionID)
		}
		return res, nil
	}
	kit.RegisterMCPTool(srv, tool, kit.Logging(c.logger, tool.Name)(endpoint), enrich)
}

// --- content ---

type contentResp struct {
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
	Mounted  bool   `json:"mounted"`
}

func (c *Controller) registerContentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "compose_content",
		Description: "Return the current editor content as HTML and Markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		md, err := c.Markdown()
		if err != nil {
			return nil, err
		}
		return contentResp{HTML: c.EditorState(), Markdown: md, Mounted: c.Mounted()}, nil
	}

	c.register(srv, tool, endpoint, kit.DecodeArgs[struct{}]())
}

// --- toggles ---

type nameReq struct {
	Name string `json:"name"`
}

func (c *Controller) registerToggleTool(srv *mcp.Server, name, desc string, apply func(string)) {
	tool := &mcp.Tool{
		Name:        name,
		Description: desc,
		InputSchema: inputSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Style, block type or command name"},
		}, []string{"name"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*nameReq)
		if r.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		apply(r.Name)
		return map[string]any{"sent": r.Name}, nil
	}

	c.register(srv, tool, endpoint, kit.DecodeArgs[nameReq]())
}

// --- link ---

type linkReq struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (c *Controller) registerLinkTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "compose_insert_link",
		Description: "Insert a link at the caret.",
		InputSchema: inputSchema(map[string]any{
			"url":  map[string]any{"type": "string", "description": "Link target"},
			"text": map[string]any{"type": "string", "description": "Link text"},
		}, []string{"url"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*linkReq)
		if r.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		text := r.Text
		if text == "" {
			text = r.URL
		}
		if err := c.AddLink(r.URL, text); err != nil {
			return nil, err
		}
		return map[string]any{"sent": r.URL}, nil
	}

	c.register(srv, tool, endpoint, kit.DecodeArgs[linkReq]())
}

// --- image ---

type imageReq struct {
	Src string `json:"src"`
}

func (c *Controller) registerImageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "compose_insert_image",
		Description: "Insert an image block after the caret.",
		InputSchema: inputSchema(map[string]any{
			"src": map[string]any{"type": "string", "description": "Image URL or data URL"},
		}, []string{"src"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*imageReq)
		if r.Src == "" {
			return nil, fmt.Errorf("src is required")
		}
		if err := c.AddImage(r.Src); err != nil {
			return nil, err
		}
		return map[string]any{"sent": r.Src}, nil
	}

	c.register(srv, tool, endpoint, kit.DecodeArgs[imageReq]())
}

// --- focus ---

func (c *Controller) registerFocusTool(srv *mcp.Server, name, desc string, apply func()) {
	tool := &mcp.Tool{
		Name:        name,
		Description: desc,
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		apply()
		return map[string]any{"sent": name}, nil
	}

	c.register(srv, tool, endpoint, kit.DecodeArgs[struct{}]())
}
