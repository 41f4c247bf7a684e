package editor

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Run is a span of text sharing one set of inline styles and one link.
type Run struct {
	Text   string
	Styles []string
	Link   string
}

// Entity is the payload of an atomic block.
type Entity struct {
	Type   string
	Params map[string]any
}

// Block is one paragraph-level unit of content.
type Block struct {
	Type   string
	Depth  int
	Runs   []Run
	Entity *Entity
}

// Len returns the block's length in runes.
func (b Block) Len() int {
	n := 0
	for _, r := range b.Runs {
		n += utf8.RuneCountInString(r.Text)
	}
	return n
}

// Text returns the block's plain text.
func (b Block) Text() string {
	var s strings.Builder
	for _, r := range b.Runs {
		s.WriteString(r.Text)
	}
	return s.String()
}

// Caret is a collapsed selection: a block index and a rune offset.
type Caret struct {
	Block  int
	Offset int
}

// Model is a reference Editor and Layout.
type Model struct {
	blocks   []Block
	caret    Caret
	override []string // styles toggled at the caret; nil when derived from text
	focused  bool
	policy   *bluemonday.Policy
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		blocks: []Block{{Type: Unstyled}},
		policy: newPolicy(),
	}
}

// Blocks returns a copy of the content.
func (m *Model) Blocks() []Block {
	out := make([]Block, len(m.blocks))
	for i, b := range m.blocks {
		b.Runs = slices.Clone(b.Runs)
		out[i] = b
	}
	return out
}

// Caret returns the caret position.
func (m *Model) Caret() Caret { return m.caret }

// HasFocus implements Editor.
func (m *Model) HasFocus() bool { return m.focused }

// Focus implements Editor.
func (m *Model) Focus() { m.focused = true }

// Blur implements Editor.
func (m *Model) Blur() { m.focused = false }

// InlineStyles implements Editor. Without an override, the caret takes the
// styles of the character before it, or of the first character at offset 0.
func (m *Model) InlineStyles() []string {
	if m.override != nil {
		return slices.Clone(m.override)
	}
	b := m.blocks[m.caret.Block]
	at := m.caret.Offset - 1
	if at < 0 {
		at = 0
	}
	pos := 0
	for _, r := range b.Runs {
		n := utf8.RuneCountInString(r.Text)
		if at < pos+n {
			return append([]string{}, r.Styles...)
		}
		pos += n
	}
	return []string{}
}

// ToggleInlineStyle implements Editor. With a collapsed caret only the
// styles of the next insertion change.
func (m *Model) ToggleInlineStyle(style string) {
	cur := m.InlineStyles()
	if i := slices.Index(cur, style); i >= 0 {
		cur = slices.Delete(cur, i, i+1)
	} else {
		cur = append(cur, style)
	}
	m.override = normalizeStyles(cur)
}

// ClearInlineStyles implements Editor.
func (m *Model) ClearInlineStyles() {
	m.override = []string{}
}

// ToggleBlockType implements Editor.
func (m *Model) ToggleBlockType(blockType string) {
	b := &m.blocks[m.caret.Block]
	if b.Type == Atomic || blockType == Atomic {
		return
	}
	if b.Type == blockType {
		b.Type = Unstyled
		return
	}
	b.Type = blockType
}

// IndentIncrease implements Editor.
func (m *Model) IndentIncrease() {
	if b := &m.blocks[m.caret.Block]; b.Type != Atomic && b.Depth < MaxDepth {
		b.Depth++
	}
}

// IndentDecrease implements Editor.
func (m *Model) IndentDecrease() {
	if b := &m.blocks[m.caret.Block]; b.Depth > 0 {
		b.Depth--
	}
}

// AtIndentedBlockStart implements Editor.
func (m *Model) AtIndentedBlockStart() bool {
	return m.caret.Offset == 0 && m.blocks[m.caret.Block].Depth > 0
}

// InsertText implements Editor. Newlines split blocks.
func (m *Model) InsertText(text string) {
	styles := m.InlineStyles()
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			m.splitBlock()
		}
		if line != "" {
			m.insertRun(Run{Text: line, Styles: styles})
		}
	}
	m.override = nil
}

// InsertLink implements Editor. An empty text shows the URL.
func (m *Model) InsertLink(url, text string) {
	if text == "" {
		text = url
	}
	if text == "" {
		return
	}
	m.insertRun(Run{Text: text, Styles: m.InlineStyles(), Link: url})
	m.override = nil
}

// InsertAtomicBlock implements Editor. The block is inserted at the caret,
// splitting the current block, and the caret moves to the block after it.
// A caret on an atomic block inserts after that block.
func (m *Model) InsertAtomicBlock(blockType string, params map[string]any) {
	atomic := Block{Type: Atomic, Entity: &Entity{Type: blockType, Params: maps.Clone(params)}}
	c := m.caret
	cur := m.blocks[c.Block]
	if cur.Type == Atomic {
		m.blocks = slices.Insert(m.blocks, c.Block+1, atomic, Block{Type: Unstyled})
		m.caret = Caret{Block: c.Block + 2}
		m.override = nil
		return
	}
	left, right := splitRuns(cur.Runs, c.Offset)

	var repl []Block
	if len(left) > 0 {
		repl = append(repl, Block{Type: cur.Type, Depth: cur.Depth, Runs: left})
	}
	repl = append(repl, atomic)
	after := Block{Type: Unstyled, Runs: right}
	if len(right) > 0 {
		after.Type, after.Depth = cur.Type, cur.Depth
	}
	repl = append(repl, after)

	m.blocks = slices.Replace(m.blocks, c.Block, c.Block+1, repl...)
	m.caret = Caret{Block: c.Block + len(repl) - 1}
	m.override = nil
}

// HandleKeyCommand implements Editor.
func (m *Model) HandleKeyCommand(command string) bool {
	switch command {
	case KeyBackspace:
		return m.backspace()
	case KeySplitBlock:
		m.splitBlock()
		return true
	case KeyBold:
		m.ToggleInlineStyle(Bold)
	case KeyItalic:
		m.ToggleInlineStyle(Italic)
	case KeyUnderline:
		m.ToggleInlineStyle(Underline)
	case KeyCode:
		m.ToggleInlineStyle(Code)
	default:
		return false
	}
	return true
}

func (m *Model) backspace() bool {
	c := m.caret
	b := &m.blocks[c.Block]
	if c.Offset > 0 {
		b.Runs = deleteRune(b.Runs, c.Offset-1)
		m.caret.Offset--
		m.override = nil
		return true
	}
	if b.Type != Unstyled && (b.Len() == 0 || c.Block == 0) {
		b.Type, b.Depth = Unstyled, 0
		return true
	}
	if c.Block == 0 {
		return false
	}
	prev := m.blocks[c.Block-1]
	if prev.Type == Atomic {
		m.blocks = slices.Delete(m.blocks, c.Block-1, c.Block)
		m.caret.Block--
		return true
	}
	off := prev.Len()
	for _, r := range b.Runs {
		prev.Runs = appendRun(prev.Runs, r)
	}
	m.blocks[c.Block-1] = prev
	m.blocks = slices.Delete(m.blocks, c.Block, c.Block+1)
	m.caret = Caret{Block: c.Block - 1, Offset: off}
	m.override = nil
	return true
}

func (m *Model) splitBlock() {
	c := m.caret
	cur := m.blocks[c.Block]
	if isList(cur.Type) && cur.Len() == 0 {
		m.blocks[c.Block].Type, m.blocks[c.Block].Depth = Unstyled, 0
		return
	}
	next := Block{Type: Unstyled}
	if isList(cur.Type) {
		next.Type, next.Depth = cur.Type, cur.Depth
	}
	if cur.Type == Atomic {
		m.blocks = slices.Insert(m.blocks, c.Block+1, next)
		m.caret = Caret{Block: c.Block + 1}
		return
	}
	left, right := splitRuns(cur.Runs, c.Offset)
	cur.Runs = left
	next.Runs = right
	m.blocks[c.Block] = cur
	m.blocks = slices.Insert(m.blocks, c.Block+1, next)
	m.caret = Caret{Block: c.Block + 1}
}

func (m *Model) insertRun(r Run) {
	c := m.caret
	b := &m.blocks[c.Block]
	if b.Type == Atomic {
		m.blocks = slices.Insert(m.blocks, c.Block+1, Block{Type: Unstyled})
		m.caret = Caret{Block: c.Block + 1}
		c = m.caret
		b = &m.blocks[c.Block]
	}
	r.Styles = normalizeStyles(r.Styles)
	left, right := splitRuns(b.Runs, c.Offset)
	runs := appendRun(left, r)
	for _, rr := range right {
		runs = appendRun(runs, rr)
	}
	b.Runs = runs
	m.caret.Offset += utf8.RuneCountInString(r.Text)
}

func (m *Model) caretToEnd() {
	last := len(m.blocks) - 1
	m.caret = Caret{Block: last, Offset: m.blocks[last].Len()}
}

// splitRuns cuts runs at a rune offset.
func splitRuns(runs []Run, off int) (left, right []Run) {
	pos := 0
	for _, r := range runs {
		n := utf8.RuneCountInString(r.Text)
		switch {
		case pos+n <= off:
			left = append(left, r)
		case pos >= off:
			right = append(right, r)
		default:
			cut := byteOffset(r.Text, off-pos)
			a, b := r, r
			a.Text, b.Text = r.Text[:cut], r.Text[cut:]
			left = append(left, a)
			right = append(right, b)
		}
		pos += n
	}
	return left, right
}

func deleteRune(runs []Run, at int) []Run {
	left, right := splitRuns(runs, at)
	_, right = splitRuns(right, 1)
	for _, r := range right {
		left = appendRun(left, r)
	}
	return left
}

// appendRun appends r, merging it into the last run when they look alike.
func appendRun(runs []Run, r Run) []Run {
	if r.Text == "" {
		return runs
	}
	if n := len(runs); n > 0 && runs[n-1].Link == r.Link && slices.Equal(runs[n-1].Styles, r.Styles) {
		runs[n-1].Text += r.Text
		return runs
	}
	return append(runs, r)
}

func byteOffset(s string, runes int) int {
	i := 0
	for ; runes > 0 && i < len(s); runes-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

var styleOrder = []string{Bold, Italic, Underline, Strikethrough, Code}

// normalizeStyles sorts styles in rendering order and removes duplicates.
func normalizeStyles(styles []string) []string {
	out := slices.Clone(styles)
	slices.SortFunc(out, func(a, b string) int {
		ia, ib := slices.Index(styleOrder, a), slices.Index(styleOrder, b)
		if ia < 0 {
			ia = len(styleOrder)
		}
		if ib < 0 {
			ib = len(styleOrder)
		}
		if ia != ib {
			return ia - ib
		}
		return strings.Compare(a, b)
	})
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func isList(blockType string) bool {
	return blockType == UnorderedListItem || blockType == OrderedListItem
}

var (
	_ Editor = (*Model)(nil)
	_ Layout = (*Model)(nil)
)
