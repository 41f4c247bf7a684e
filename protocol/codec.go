package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// SetContent builds the command that replaces the document content. The HTML
// travels base64-encoded because it routinely contains quotes and newlines.
func SetContent(html string) Command {
	return Command{Name: CmdSetContent, Arg: EncodeBase64(html)}
}

// SetPlaceholder builds the placeholder command.
func SetPlaceholder(text string) Command {
	return Command{Name: CmdSetPlaceholder, Arg: text}
}

// SetVisualStyle builds the visual style command from a CSS property object.
func SetVisualStyle(style map[string]any) (Command, error) {
	arg, err := EncodeJSON(style)
	if err != nil {
		return Command{}, err
	}
	return Command{Name: CmdSetVisualStyle, Arg: arg}, nil
}

// SetDarkMode builds the dark mode command.
func SetDarkMode(on bool) Command {
	return Command{Name: CmdSetDarkMode, Arg: strconv.FormatBool(on)}
}

// ToggleBlockType builds the block type toggle command.
func ToggleBlockType(blockType string) Command {
	return Command{Name: CmdToggleBlockType, Arg: blockType}
}

// ToggleInlineStyle builds the inline style toggle command.
func ToggleInlineStyle(style string) Command {
	return Command{Name: CmdToggleInlineStyle, Arg: style}
}

// ToggleSpecial builds a special formatting command (CLEAR, IndentIncrease,
// IndentDecrease).
func ToggleSpecial(name string) Command {
	return Command{Name: CmdToggleSpecial, Arg: name}
}

// InsertAtomicBlock builds the atomic block insertion command.
func InsertAtomicBlock(blockType string, params map[string]any) (Command, error) {
	arg, err := EncodeJSON(AtomicBlock{Type: blockType, Params: params})
	if err != nil {
		return Command{}, err
	}
	return Command{Name: CmdInsertAtomicBlock, Arg: arg}, nil
}

// InsertLink builds the link insertion command.
func InsertLink(url, text string) (Command, error) {
	arg, err := EncodeJSON(Link{URL: url, Text: text})
	if err != nil {
		return Command{}, err
	}
	return Command{Name: CmdInsertLink, Arg: arg}, nil
}

// Focus builds the focus command.
func Focus() Command { return Command{Name: CmdFocus} }

// Blur builds the blur command.
func Blur() Command { return Command{Name: CmdBlur} }

// EncodeBase64 encodes UTF-8 text with the standard padded alphabet.
func EncodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeBase64 reverses EncodeBase64.
func DecodeBase64(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("protocol: decode base64: %w", err)
	}
	return string(b), nil
}

// EncodeJSON serialises v into a command argument.
func EncodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("protocol: encode json: %w", err)
	}
	return string(b), nil
}

// DecodeJSON reverses EncodeJSON.
func DecodeJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("protocol: decode json: %w", err)
	}
	return nil
}

// DecodeContent returns the HTML carried by a CmdSetContent argument.
func DecodeContent(arg string) (string, error) {
	html, err := DecodeBase64(arg)
	if err != nil {
		return "", &DecodeError{Name: CmdSetContent, Cause: err}
	}
	return html, nil
}

// DecodeVisualStyle returns the style object carried by a CmdSetVisualStyle argument.
func DecodeVisualStyle(arg string) (map[string]any, error) {
	var style map[string]any
	if err := DecodeJSON(arg, &style); err != nil {
		return nil, &DecodeError{Name: CmdSetVisualStyle, Cause: err}
	}
	return style, nil
}

// DecodeDarkMode returns the flag carried by a CmdSetDarkMode argument.
// Anything other than "true" is false.
func DecodeDarkMode(arg string) bool {
	return arg == "true"
}

// DecodeAtomicBlock returns the block carried by a CmdInsertAtomicBlock argument.
func DecodeAtomicBlock(arg string) (AtomicBlock, error) {
	var blk AtomicBlock
	if err := DecodeJSON(arg, &blk); err != nil {
		return AtomicBlock{}, &DecodeError{Name: CmdInsertAtomicBlock, Cause: err}
	}
	if blk.Type == "" {
		return AtomicBlock{}, &DecodeError{Name: CmdInsertAtomicBlock, Cause: fmt.Errorf("missing type")}
	}
	return blk, nil
}

// DecodeLink returns the link carried by a CmdInsertLink argument.
func DecodeLink(arg string) (Link, error) {
	var l Link
	if err := DecodeJSON(arg, &l); err != nil {
		return Link{}, &DecodeError{Name: CmdInsertLink, Cause: err}
	}
	return l, nil
}
