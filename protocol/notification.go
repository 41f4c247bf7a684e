package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

var newlines = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

// StripNewlines removes CRLF, LF and CR line breaks. Content reported in
// editorChange carries none.
func StripNewlines(s string) string { return newlines.Replace(s) }

// Notification is one document event. Data holds the type-dependent JSON
// payload untouched, so unknown types survive a decode.
type Notification struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewNotification builds a notification with data serialised as JSON.
func NewNotification(typ string, data any) (Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Notification{}, fmt.Errorf("protocol: encode %s: %w", typ, err)
	}
	return Notification{Type: typ, Data: raw}, nil
}

// Marshal returns the wire envelope.
func (n Notification) Marshal() ([]byte, error) {
	if len(n.Data) == 0 {
		n.Data = json.RawMessage("null")
	}
	return json.Marshal(n)
}

// Decode unmarshals the payload into v.
func (n Notification) Decode(v any) error {
	if err := json.Unmarshal(n.Data, v); err != nil {
		return &DecodeError{Name: n.Type, Cause: err}
	}
	return nil
}

// ParseNotification decodes a wire envelope.
func ParseNotification(frame []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(frame, &n); err != nil {
		return Notification{}, &DecodeError{Name: "envelope", Cause: err}
	}
	if n.Type == "" {
		return Notification{}, &DecodeError{Name: "envelope", Cause: fmt.Errorf("missing type")}
	}
	return n, nil
}
