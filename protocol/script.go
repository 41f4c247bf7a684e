package protocol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var frameRe = regexp.MustCompile(`(?s)^window\.([A-Za-z_$][A-Za-z0-9_$]*)\((.*)\);true;$`)

// FormatScript renders cmd as the script the host injects into the document.
func FormatScript(cmd Command) string {
	if cmd.Arg == "" {
		return "window." + cmd.Name + "();true;"
	}
	return "window." + cmd.Name + "(" + QuoteJS(cmd.Arg) + ");true;"
}

// ParseScript is the inverse of FormatScript.
func ParseScript(script string) (Command, error) {
	m := frameRe.FindStringSubmatch(strings.TrimSpace(script))
	if m == nil {
		return Command{}, ErrMalformedFrame
	}
	cmd := Command{Name: m[1]}
	if m[2] == "" {
		return cmd, nil
	}
	arg, err := UnquoteJS(m[2])
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	cmd.Arg = arg
	return cmd, nil
}

// QuoteJS returns s as a single-quoted JavaScript string literal that cannot
// terminate the surrounding invocation or an enclosing <script> element.
func QuoteJS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		case '/':
			if i > 0 && s[i-1] == '<' {
				b.WriteString(`\/`)
			} else {
				b.WriteByte('/')
			}
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// UnquoteJS decodes a single- or double-quoted JavaScript string literal.
func UnquoteJS(lit string) (string, error) {
	if len(lit) < 2 || (lit[0] != '\'' && lit[0] != '"') || lit[len(lit)-1] != lit[0] {
		return "", fmt.Errorf("not a string literal")
	}
	quote := lit[0]
	body := lit[1 : len(lit)-1]

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); {
		c := body[i]
		if c == quote {
			return "", fmt.Errorf("unescaped quote at %d", i+1)
		}
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			return "", fmt.Errorf("dangling escape")
		}
		e := body[i+1]
		i += 2
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'u':
			if i+4 > len(body) {
				return "", fmt.Errorf("short \\u escape")
			}
			n, err := strconv.ParseUint(body[i:i+4], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad \\u escape: %w", err)
			}
			i += 4
			r := rune(n)
			if utf16.IsSurrogate(r) && i+6 <= len(body) && body[i] == '\\' && body[i+1] == 'u' {
				if lo, err := strconv.ParseUint(body[i+2:i+6], 16, 32); err == nil {
					if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
						r = pair
						i += 6
					}
				}
			}
			b.WriteRune(r)
		default:
			// \\, \', \", \/ and any other escaped character stand for themselves.
			r, size := utf8.DecodeRuneInString(body[i-1:])
			b.WriteRune(r)
			i += size - 1
		}
	}
	return b.String(), nil
}
