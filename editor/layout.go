package editor

import "unicode/utf8"

// Geometry used by Model's Layout estimate.
const (
	LineHeight   = 20.0
	PagePadding  = 8.0
	LineColumns  = 60
	ImageHeight  = 200.0
)

var headerScale = map[string]float64{
	HeaderOne:   2,
	HeaderTwo:   1.5,
	HeaderThree: 1.25,
}

func lineHeightOf(b Block) float64 {
	if s, ok := headerScale[b.Type]; ok {
		return LineHeight * s
	}
	return LineHeight
}

// linesBefore counts the wrapped lines of text up to rune offset off.
func linesBefore(text string, off int) int {
	lines, col := 1, 0
	i := 0
	for _, r := range text {
		if i == off {
			break
		}
		i++
		if r == '\n' {
			lines++
			col = 0
			continue
		}
		col++
		if col > LineColumns {
			lines++
			col = 1
		}
	}
	return lines
}

func blockHeight(b Block) float64 {
	if b.Type == Atomic {
		if b.Entity != nil {
			if h, ok := b.Entity.Params["height"].(float64); ok && h > 0 {
				return h
			}
		}
		return ImageHeight
	}
	text := b.Text()
	return float64(linesBefore(text, utf8.RuneCountInString(text))) * lineHeightOf(b)
}

func (m *Model) blockRect(i int) Rect {
	top := PagePadding
	for j := 0; j < i; j++ {
		top += blockHeight(m.blocks[j])
	}
	return Rect{Top: top, Bottom: top + blockHeight(m.blocks[i])}
}

// ContentHeight implements Layout.
func (m *Model) ContentHeight() float64 {
	h := 2 * PagePadding
	for _, b := range m.blocks {
		h += blockHeight(b)
	}
	return h
}

// CaretRect implements Layout. Like a browser range on an empty line, the
// caret of an empty block has no geometry.
func (m *Model) CaretRect() (Rect, bool) {
	b := m.blocks[m.caret.Block]
	if b.Len() == 0 {
		return Rect{}, false
	}
	r := m.blockRect(m.caret.Block)
	lh := lineHeightOf(b)
	top := r.Top + float64(linesBefore(b.Text(), m.caret.Offset)-1)*lh
	return Rect{Top: top, Bottom: top + lh}, true
}

// FocusRect implements Layout.
func (m *Model) FocusRect() (Rect, bool) {
	return m.blockRect(m.caret.Block), true
}
