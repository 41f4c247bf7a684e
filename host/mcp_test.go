package host

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/composer/editor"
	"github.com/hazyhaar/composer/protocol"
)

var testMCPImpl = &mcp.Implementation{Name: "composer-test", Version: "0.1.0"}

func mcpSession(t *testing.T, c *Controller) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	c.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_CommandsReachDocument(t *testing.T) {
	f := newFixture(t, Props{})
	f.run()
	f.mount()
	f.expectScripts(protocol.SetDarkMode(false))
	session := mcpSession(t, f.c)

	calls := []struct {
		tool string
		args map[string]any
		want protocol.Command
	}{
		{"compose_toggle_style", map[string]any{"name": editor.Bold}, protocol.ToggleInlineStyle(editor.Bold)},
		{"compose_toggle_block", map[string]any{"name": editor.Blockquote}, protocol.ToggleBlockType(editor.Blockquote)},
		{"compose_special", map[string]any{"name": protocol.SpecialClear}, protocol.ToggleSpecial(protocol.SpecialClear)},
		{"compose_focus", map[string]any{}, protocol.Focus()},
		{"compose_blur", map[string]any{}, protocol.Blur()},
	}
	for _, c := range calls {
		if text, isErr := mcpCallTool(t, session, c.tool, c.args); isErr {
			t.Fatalf("%s: tool error %s", c.tool, text)
		}
		f.expectScripts(c.want)
	}

	mcpCallTool(t, session, "compose_insert_link", map[string]any{"url": "https://x.org"})
	link, _ := protocol.InsertLink("https://x.org", "https://x.org")
	f.expectScripts(link)

	mcpCallTool(t, session, "compose_insert_image", map[string]any{"src": "https://x.org/a.png"})
	img, _ := protocol.InsertAtomicBlock(editor.AtomicImage, map[string]any{"src": "https://x.org/a.png"})
	f.expectScripts(img)
}

func TestMCP_MissingArgument(t *testing.T) {
	f := newFixture(t, Props{})
	session := mcpSession(t, f.c)

	for _, tool := range []string{"compose_toggle_style", "compose_insert_link", "compose_insert_image"} {
		if _, isErr := mcpCallTool(t, session, tool, map[string]any{}); !isErr {
			t.Errorf("%s without argument: want tool error", tool)
		}
	}
}

func TestMCP_Content(t *testing.T) {
	f := newFixture(t, Props{})
	f.run()
	f.post(protocol.NotifyContentChanged, "<p><em>draft</em></p>")
	f.rec.expect(t, "change:<p><em>draft</em></p>")
	session := mcpSession(t, f.c)

	text, isErr := mcpCallTool(t, session, "compose_content", map[string]any{})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	var resp contentResp
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.HTML != "<p><em>draft</em></p>" || resp.Markdown != "*draft*" || resp.Mounted {
		t.Fatalf("content: got %+v", resp)
	}
}
