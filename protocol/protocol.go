// Package protocol is the shared schema of the compose bridge: the command
// vocabulary the host sends into the document, the notification vocabulary
// the document reports back, and the encodings both sides must agree on.
//
// Host → Document frames are script invocations:
//
//	window.toggleInlineStyle('BOLD');true;
//
// Document → Host frames are JSON envelopes:
//
//	{"type":"editorChange","data":"<p>hi</p>"}
//
// Names are the ones used by the deployed web document, so a Go host can drive
// the existing bundle and a Go document can stand in for it.
package protocol

// Command names (Host → Document).
const (
	CmdSetContent        = "setDefaultValue"      // arg: base64 HTML
	CmdSetPlaceholder    = "setEditorPlaceholder" // arg: text
	CmdSetVisualStyle    = "setStyle"             // arg: JSON object
	CmdSetDarkMode       = "setIsDarkMode"        // arg: "true" | "false"
	CmdToggleBlockType   = "toggleBlockType"      // arg: block type name
	CmdToggleInlineStyle = "toggleInlineStyle"    // arg: inline style name
	CmdToggleSpecial     = "toggleSpecialType"    // arg: special command name
	CmdInsertAtomicBlock = "onAddAtomicBlock"     // arg: JSON {type, params}
	CmdInsertLink        = "onAddLink"            // arg: JSON {url, text}
	CmdFocus             = "focusTextEditor"
	CmdBlur              = "blurTextEditor"
)

// Notification types (Document → Host).
const (
	NotifyMounted          = "isMounted"          // data: true
	NotifyContentChanged   = "editorChange"       // data: HTML string
	NotifyActiveStyles     = "activeStyleChange"  // data: []string
	NotifySizeChanged      = "sizeChange"         // data: number (px)
	NotifyCaretPosition    = "editPosition"       // data: number (px)
	NotifyFocusGained      = "onFocus"            // data: true
	NotifyFocusLost        = "onBlur"             // data: true
	NotifyContentDirty     = "contentChange"      // data: true
	NotifyFilesPasted      = "onPastedFiles"      // data: []File
	NotifyLocalFilesPasted = "onPastedLocalFiles" // data: []string
	NotifyFilesDropped     = "onDroppedFiles"     // data: []File with empty Data
)

// Special commands accepted by CmdToggleSpecial.
const (
	SpecialClear          = "CLEAR"
	SpecialIndentIncrease = "IndentIncrease"
	SpecialIndentDecrease = "IndentDecrease"
)

// Command is one instruction for the document. An empty Arg means the
// command is invoked without an argument.
type Command struct {
	Name string
	Arg  string
}

// File describes a pasted or dropped attachment. Data is a data URL for
// pasted files and empty for dropped ones.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// AtomicBlock is the argument of CmdInsertAtomicBlock.
type AtomicBlock struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Link is the argument of CmdInsertLink.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}
