package llm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var errSyntax = errors.New("invalid JSON")

// ParsePartialJSON parses text that may be a truncated JSON document.
//
// Objects and arrays cut short keep the members read so far, a key without a
// value is dropped, strings keep their received prefix, numbers keep their
// longest valid prefix and literals are completed (t becomes true). complete is
// true only when a whole top-level value was read. Empty input yields a nil
// value and no error.
func ParsePartialJSON(text string) (value interface{}, complete bool, err error) {
	p := &partialParser{s: stripFence(text)}
	p.skipSpace()
	if p.eof() {
		return nil, false, nil
	}
	v, present, done, err := p.value()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	return v, done, nil
}

// stripFence removes a surrounding markdown code fence (```json ... ```).
func stripFence(text string) string {
	s := strings.TrimLeft(text, " \t\r\n")
	if s != "" && len(s) < 3 && strings.HasPrefix("```", s) {
		// fence opener cut short
		return ""
	}
	if !strings.HasPrefix(s, "```") {
		return text
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		// still reading the fence line
		return ""
	}
	s = s[nl+1:]
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return s
}

type partialParser struct {
	s   string
	pos int
}

func (p *partialParser) eof() bool { return p.pos >= len(p.s) }

func (p *partialParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// value parses one JSON value. present is false when input ended before any
// usable part of the value; done is false when the value was cut short.
func (p *partialParser) value() (v interface{}, present, done bool, err error) {
	switch c := p.s[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		s, done, err := p.str()
		return s, true, done, err
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	case c == 't':
		return p.literal("true", true)
	case c == 'f':
		return p.literal("false", false)
	case c == 'n':
		return p.literal("null", nil)
	default:
		return nil, false, false, fmt.Errorf("%w: unexpected %q at offset %d", errSyntax, c, p.pos)
	}
}

func (p *partialParser) object() (interface{}, bool, bool, error) {
	obj := map[string]interface{}{}
	p.pos++ // {

	p.skipSpace()
	if p.eof() {
		return obj, true, false, nil
	}
	if p.s[p.pos] == '}' {
		p.pos++
		return obj, true, true, nil
	}

	for {
		p.skipSpace()
		if p.eof() {
			return obj, true, false, nil
		}
		if p.s[p.pos] != '"' {
			return nil, false, false, fmt.Errorf("%w: expected object key at offset %d", errSyntax, p.pos)
		}
		key, keyDone, err := p.str()
		if err != nil {
			return nil, false, false, err
		}
		if !keyDone {
			return obj, true, false, nil
		}

		p.skipSpace()
		if p.eof() {
			return obj, true, false, nil
		}
		if p.s[p.pos] != ':' {
			return nil, false, false, fmt.Errorf("%w: expected ':' at offset %d", errSyntax, p.pos)
		}
		p.pos++

		p.skipSpace()
		if p.eof() {
			return obj, true, false, nil
		}
		v, present, done, err := p.value()
		if err != nil {
			return nil, false, false, err
		}
		if present {
			obj[key] = v
		}
		if !done {
			return obj, true, false, nil
		}

		p.skipSpace()
		if p.eof() {
			return obj, true, false, nil
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, true, true, nil
		default:
			return nil, false, false, fmt.Errorf("%w: expected ',' or '}' at offset %d", errSyntax, p.pos)
		}
	}
}

func (p *partialParser) array() (interface{}, bool, bool, error) {
	arr := []interface{}{}
	p.pos++ // [

	p.skipSpace()
	if p.eof() {
		return arr, true, false, nil
	}
	if p.s[p.pos] == ']' {
		p.pos++
		return arr, true, true, nil
	}

	for {
		p.skipSpace()
		if p.eof() {
			return arr, true, false, nil
		}
		v, present, done, err := p.value()
		if err != nil {
			return nil, false, false, err
		}
		if present {
			arr = append(arr, v)
		}
		if !done {
			return arr, true, false, nil
		}

		p.skipSpace()
		if p.eof() {
			return arr, true, false, nil
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, true, true, nil
		default:
			return nil, false, false, fmt.Errorf("%w: expected ',' or ']' at offset %d", errSyntax, p.pos)
		}
	}
}

// str reads a string starting at the opening quote. A trailing escape that
// was cut short is dropped from the result.
func (p *partialParser) str() (string, bool, error) {
	p.pos++ // "
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '"':
			p.pos++
			return b.String(), true, nil
		case c == '\\':
			r, n, ok, err := p.escape(p.pos)
			if err != nil {
				return "", false, err
			}
			if !ok {
				p.pos = len(p.s)
				return b.String(), false, nil
			}
			b.WriteRune(r)
			p.pos += n
		case c < 0x20:
			return "", false, fmt.Errorf("%w: control character in string at offset %d", errSyntax, p.pos)
		default:
			r, size := utf8.DecodeRuneInString(p.s[p.pos:])
			if r == utf8.RuneError && size == 1 && !utf8.FullRuneInString(p.s[p.pos:]) {
				// multi-byte rune split across deltas
				p.pos = len(p.s)
				return b.String(), false, nil
			}
			b.WriteRune(r)
			p.pos += size
		}
	}
	return b.String(), false, nil
}

// escape decodes the escape sequence at i. ok is false when the input ends
// inside the sequence.
func (p *partialParser) escape(i int) (r rune, n int, ok bool, err error) {
	if i+1 >= len(p.s) {
		return 0, 0, false, nil
	}
	switch c := p.s[i+1]; c {
	case '"', '\\', '/':
		return rune(c), 2, true, nil
	case 'b':
		return '\b', 2, true, nil
	case 'f':
		return '\f', 2, true, nil
	case 'n':
		return '\n', 2, true, nil
	case 'r':
		return '\r', 2, true, nil
	case 't':
		return '\t', 2, true, nil
	case 'u':
		r1, ok, err := p.hex4(i + 2)
		if err != nil || !ok {
			return 0, 0, false, err
		}
		if !utf16.IsSurrogate(r1) {
			return r1, 6, true, nil
		}
		// high surrogate: wait for the low half before emitting anything
		j := i + 6
		if j >= len(p.s) || (j+1 >= len(p.s) && p.s[j] == '\\') {
			return 0, 0, false, nil
		}
		if p.s[j] != '\\' || p.s[j+1] != 'u' {
			return utf8.RuneError, 6, true, nil
		}
		r2, ok, err := p.hex4(j + 2)
		if err != nil || !ok {
			return 0, 0, false, err
		}
		if dec := utf16.DecodeRune(r1, r2); dec != utf8.RuneError {
			return dec, 12, true, nil
		}
		return utf8.RuneError, 6, true, nil
	default:
		return 0, 0, false, fmt.Errorf("%w: invalid escape '\\%c' at offset %d", errSyntax, c, i)
	}
}

func (p *partialParser) hex4(i int) (rune, bool, error) {
	if i+4 > len(p.s) {
		for k := i; k < len(p.s); k++ {
			if !isHex(p.s[k]) {
				return 0, false, fmt.Errorf("%w: invalid unicode escape at offset %d", errSyntax, i)
			}
		}
		return 0, false, nil
	}
	v, err := strconv.ParseUint(p.s[i:i+4], 16, 32)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid unicode escape at offset %d", errSyntax, i)
	}
	return rune(v), true, nil
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (p *partialParser) number() (interface{}, bool, bool, error) {
	start := p.pos
	for p.pos < len(p.s) && strings.IndexByte("+-0123456789.eE", p.s[p.pos]) >= 0 {
		p.pos++
	}
	lit := p.s[start:p.pos]

	if p.eof() {
		// the number may continue in the next delta; keep its longest valid prefix
		for end := len(lit); end > 0; end-- {
			if f, err := strconv.ParseFloat(lit[:end], 64); err == nil {
				return f, true, false, nil
			}
		}
		return nil, false, false, nil
	}

	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, false, false, fmt.Errorf("%w: invalid number %q at offset %d", errSyntax, lit, start)
	}
	return f, true, true, nil
}

func (p *partialParser) literal(word string, v interface{}) (interface{}, bool, bool, error) {
	rest := p.s[p.pos:]
	if len(rest) < len(word) {
		if strings.HasPrefix(word, rest) {
			p.pos = len(p.s)
			return v, true, false, nil
		}
		return nil, false, false, fmt.Errorf("%w: invalid literal at offset %d", errSyntax, p.pos)
	}
	if !strings.HasPrefix(rest, word) {
		return nil, false, false, fmt.Errorf("%w: invalid literal at offset %d", errSyntax, p.pos)
	}
	p.pos += len(word)
	return v, true, true, nil
}
