// Package editor is the content-model side of the document: the operations
// the bridge performs on the rich-text library and the geometry it samples
// after a change.
//
// Model is a small block/run implementation of both interfaces. It is good
// enough to run a document without a browser (headless mode, tests); a
// browser document keeps its own library and never uses it.
package editor

// Block types.
const (
	Unstyled          = "unstyled"
	HeaderOne         = "header-one"
	HeaderTwo         = "header-two"
	HeaderThree       = "header-three"
	HeaderFour        = "header-four"
	HeaderFive        = "header-five"
	HeaderSix         = "header-six"
	Blockquote        = "blockquote"
	CodeBlock         = "code-block"
	UnorderedListItem = "unordered-list-item"
	OrderedListItem   = "ordered-list-item"
	Atomic            = "atomic"
)

// AtomicImage is the entity type of an embedded image block.
const AtomicImage = "image"

// Inline styles.
const (
	Bold          = "BOLD"
	Italic        = "ITALIC"
	Underline     = "UNDERLINE"
	Strikethrough = "STRIKETHROUGH"
	Code          = "CODE"
)

// Key commands understood by HandleKeyCommand.
const (
	KeyBackspace  = "backspace"
	KeySplitBlock = "split-block"
	KeyBold       = "bold"
	KeyItalic     = "italic"
	KeyUnderline  = "underline"
	KeyCode       = "code"
)

// MaxDepth is the deepest indentation level.
const MaxDepth = 4

// Editor is the rich-text library as seen by the bridge. Implementations are
// not safe for concurrent use; the bridge calls them from its event loop only.
type Editor interface {
	// SetHTML replaces the whole content.
	SetHTML(html string) error
	// HTML serialises the content.
	HTML() string
	// InlineStyles returns the inline styles active at the caret.
	InlineStyles() []string

	HasFocus() bool
	Focus()
	Blur()

	ToggleBlockType(blockType string)
	ToggleInlineStyle(style string)
	ClearInlineStyles()
	IndentIncrease()
	IndentDecrease()
	// AtIndentedBlockStart reports whether the caret sits at offset 0 of an
	// indented block.
	AtIndentedBlockStart() bool

	InsertAtomicBlock(blockType string, params map[string]any)
	InsertLink(url, text string)
	InsertText(text string)

	// HandleKeyCommand applies the library's default handling for a key
	// command and reports whether it did anything.
	HandleKeyCommand(command string) bool
}

// Rect is a vertical extent in CSS pixels.
type Rect struct {
	Top    float64
	Bottom float64
}

// Layout answers the geometry questions asked after a change settles.
type Layout interface {
	// ContentHeight is the scroll height of the document.
	ContentHeight() float64
	// CaretRect is the caret's bounding box. ok is false when the engine
	// cannot measure it, typically on an empty line.
	CaretRect() (r Rect, ok bool)
	// FocusRect is the bounding box of the element holding the caret.
	FocusRect() (r Rect, ok bool)
}
