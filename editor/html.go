package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("data-indent").Matching(regexp.MustCompile(`^[0-9]$`)).Globally()
	p.AllowAttrs("data-atomic").Matching(regexp.MustCompile(`^[A-Za-z0-9_-]+$`)).OnElements("figure")
	p.AllowDataURIImages()
	p.AllowURLSchemes("file")
	return p
}

// SetHTML implements Editor. The input is sanitised before import; the caret
// moves to the end of the new content and loses any pending style.
func (m *Model) SetHTML(s string) error {
	clean := m.policy.Sanitize(s)
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(clean), ctx)
	if err != nil {
		return fmt.Errorf("editor: parse html: %w", err)
	}
	imp := &importer{listType: UnorderedListItem, listDepth: -1}
	for _, n := range nodes {
		imp.walk(n, inline{})
	}
	imp.flush()
	if len(imp.blocks) == 0 {
		imp.blocks = []Block{{Type: Unstyled}}
	}
	m.blocks = imp.blocks
	m.override = nil
	m.caretToEnd()
	return nil
}

// HTML implements Editor.
func (m *Model) HTML() string {
	var b strings.Builder
	for i := 0; i < len(m.blocks); {
		blk := m.blocks[i]
		if !isList(blk.Type) {
			writeBlock(&b, blk)
			i++
			continue
		}
		tag := "ul"
		if blk.Type == OrderedListItem {
			tag = "ol"
		}
		b.WriteString("<" + tag + ">")
		for ; i < len(m.blocks) && m.blocks[i].Type == blk.Type; i++ {
			writeBlock(&b, m.blocks[i])
		}
		b.WriteString("</" + tag + ">")
	}
	return b.String()
}

var blockTags = map[string]string{
	Unstyled:          "p",
	HeaderOne:         "h1",
	HeaderTwo:         "h2",
	HeaderThree:       "h3",
	HeaderFour:        "h4",
	HeaderFive:        "h5",
	HeaderSix:         "h6",
	Blockquote:        "blockquote",
	CodeBlock:         "pre",
	UnorderedListItem: "li",
	OrderedListItem:   "li",
	Atomic:            "figure",
}

var styleTags = map[string]string{
	Bold:          "strong",
	Italic:        "em",
	Underline:     "u",
	Strikethrough: "s",
	Code:          "code",
}

func writeBlock(b *strings.Builder, blk Block) {
	tag, ok := blockTags[blk.Type]
	if !ok {
		tag = "p"
	}
	b.WriteString("<" + tag)
	if blk.Depth > 0 {
		fmt.Fprintf(b, ` data-indent="%d"`, blk.Depth)
	}
	if blk.Type == Atomic {
		writeEntity(b, blk.Entity)
		b.WriteString("</figure>")
		return
	}
	b.WriteByte('>')
	if blk.Len() == 0 {
		b.WriteString("<br>")
	}
	for _, r := range blk.Runs {
		if r.Link != "" {
			b.WriteString(`<a href="` + html.EscapeString(r.Link) + `">`)
		}
		for _, s := range r.Styles {
			if t, ok := styleTags[s]; ok {
				b.WriteString("<" + t + ">")
			}
		}
		b.WriteString(strings.ReplaceAll(html.EscapeString(r.Text), "\n", "<br>"))
		for i := len(r.Styles) - 1; i >= 0; i-- {
			if t, ok := styleTags[r.Styles[i]]; ok {
				b.WriteString("</" + t + ">")
			}
		}
		if r.Link != "" {
			b.WriteString("</a>")
		}
	}
	b.WriteString("</" + tag + ">")
}

func writeEntity(b *strings.Builder, e *Entity) {
	if e == nil || e.Type != AtomicImage {
		typ := "unknown"
		if e != nil {
			typ = e.Type
		}
		b.WriteString(` data-atomic="` + html.EscapeString(typ) + `">`)
		return
	}
	b.WriteString(`><img src="` + html.EscapeString(paramString(e.Params, "src", "url")) + `"`)
	if alt := paramString(e.Params, "alt"); alt != "" {
		b.WriteString(` alt="` + html.EscapeString(alt) + `"`)
	}
	b.WriteByte('>')
}

func paramString(params map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := params[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// inline is the formatting inherited by text nodes.
type inline struct {
	styles []string
	link   string
	pre    bool
}

func (c inline) with(style string) inline {
	c.styles = append(append([]string{}, c.styles...), style)
	return c
}

type importer struct {
	blocks    []Block
	cur       *Block
	listType  string
	listDepth int // nesting of the list being imported, -1 outside lists
}

func (p *importer) open(typ string, n *html.Node) {
	p.flush()
	p.cur = &Block{Type: typ, Depth: indentOf(n)}
}

// flush closes the open block. A trailing <br> and trailing spaces are not content.
func (p *importer) flush() {
	if p.cur == nil {
		return
	}
	b := p.cur
	p.cur = nil
	if n := len(b.Runs); n > 0 {
		last := &b.Runs[n-1]
		last.Text = strings.TrimSuffix(last.Text, "\n")
		if b.Type != CodeBlock {
			last.Text = strings.TrimRightFunc(last.Text, func(r rune) bool { return r == ' ' })
		}
		if last.Text == "" {
			b.Runs = b.Runs[:n-1]
		}
	}
	p.blocks = append(p.blocks, *b)
}

func (p *importer) text(s string, c inline) {
	if !c.pre {
		s = collapseSpace(s)
	}
	if p.cur == nil {
		if strings.TrimSpace(s) == "" {
			return
		}
		p.cur = &Block{Type: Unstyled}
	}
	if !c.pre {
		txt := p.cur.Text()
		if txt == "" || strings.HasSuffix(txt, " ") || strings.HasSuffix(txt, "\n") {
			s = strings.TrimLeft(s, " ")
		}
	}
	p.cur.Runs = appendRun(p.cur.Runs, Run{Text: s, Styles: normalizeStyles(c.styles), Link: c.link})
}

func (p *importer) atomic(e *Entity) {
	p.flush()
	p.blocks = append(p.blocks, Block{Type: Atomic, Entity: e})
}

func (p *importer) walk(n *html.Node, c inline) {
	switch n.Type {
	case html.TextNode:
		p.text(n.Data, c)
		return
	case html.ElementNode:
	default:
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			p.walk(ch, c)
		}
		return
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Title, atom.Meta, atom.Link:
		return
	case atom.P, atom.Div:
		p.block(Unstyled, n, c)
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		p.block(headerTypes[n.Data[1]-'1'], n, c)
		return
	case atom.Blockquote:
		p.block(Blockquote, n, c)
		return
	case atom.Pre:
		c.pre = true
		p.block(CodeBlock, n, c)
		return
	case atom.Ul, atom.Ol:
		p.flush()
		prev := p.listType
		p.listType = UnorderedListItem
		if n.DataAtom == atom.Ol {
			p.listType = OrderedListItem
		}
		p.listDepth++
		p.children(n, c)
		p.flush()
		p.listDepth--
		p.listType = prev
		return
	case atom.Li:
		p.open(p.listType, n)
		if d := min(max(p.listDepth, 0), MaxDepth); p.cur.Depth < d {
			p.cur.Depth = d
		}
		p.children(n, c)
		p.flush()
		return
	case atom.Figure:
		if img := findElement(n, atom.Img); img != nil {
			p.atomic(imageEntity(img))
		} else if typ := attr(n, "data-atomic"); typ != "" {
			p.atomic(&Entity{Type: typ, Params: map[string]any{}})
		}
		return
	case atom.Img:
		p.atomic(imageEntity(n))
		return
	case atom.Br:
		if p.cur != nil {
			p.cur.Runs = appendRun(p.cur.Runs, Run{Text: "\n", Styles: normalizeStyles(c.styles), Link: c.link})
		}
		return
	case atom.Strong, atom.B:
		c = c.with(Bold)
	case atom.Em, atom.I:
		c = c.with(Italic)
	case atom.U, atom.Ins:
		c = c.with(Underline)
	case atom.S, atom.Strike, atom.Del:
		c = c.with(Strikethrough)
	case atom.Code, atom.Tt:
		if !c.pre {
			c = c.with(Code)
		}
	case atom.A:
		if href := attr(n, "href"); href != "" {
			c.link = href
		}
	}
	p.children(n, c)
}

var headerTypes = []string{HeaderOne, HeaderTwo, HeaderThree, HeaderFour, HeaderFive, HeaderSix}

func (p *importer) block(typ string, n *html.Node, c inline) {
	if typ == Unstyled && p.cur != nil && len(p.cur.Runs) == 0 {
		// A wrapper inside an open, still empty block: <li><p>x</p></li>.
		p.children(n, c)
		return
	}
	p.open(typ, n)
	p.children(n, c)
	p.flush()
}

func (p *importer) children(n *html.Node, c inline) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		p.walk(ch, c)
	}
}

func imageEntity(img *html.Node) *Entity {
	params := map[string]any{"src": attr(img, "src")}
	if alt := attr(img, "alt"); alt != "" {
		params["alt"] = alt
	}
	return &Entity{Type: AtomicImage, Params: params}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.DataAtom == a {
			return ch
		}
		if found := findElement(ch, a); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func indentOf(n *html.Node) int {
	d, err := strconv.Atoi(attr(n, "data-indent"))
	if err != nil || d < 0 {
		return 0
	}
	return min(d, MaxDepth)
}

func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}
