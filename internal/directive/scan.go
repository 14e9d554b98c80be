// Package directive extracts agent-to-agent commands embedded in response
// text and materializes them on the bus.
//
// Three forms are recognized:
//
//	[HANDOFF:<agent>] task
//	[MSG:<agent>] content
//	[BROADCAST] content
//
// A payload runs until the next directive opener of the same kind or the end
// of the text. Directives of other kinds do not end it.
package directive

import (
	"strings"
)

// Kind identifies a directive form.
type Kind string

const (
	KindHandoff   Kind = "HANDOFF"
	KindMessage   Kind = "MSG"
	KindBroadcast Kind = "BROADCAST"
)

// Directive is one extracted command.
type Directive struct {
	Kind    Kind
	Target  string // raw target as written; empty for broadcasts
	Payload string
	Ordinal int // position among directives of the same kind
}

// Scan returns every well-formed directive in text: handoffs first, then
// messages, then broadcasts, each group in text order.
func Scan(text string) []Directive {
	var out []Directive
	out = append(out, scanKind(text, KindHandoff, true)...)
	out = append(out, scanKind(text, KindMessage, true)...)
	out = append(out, scanKind(text, KindBroadcast, false)...)
	return out
}

func scanKind(text string, kind Kind, targeted bool) []Directive {
	opener := "[" + string(kind)
	if targeted {
		opener += ":"
	} else {
		opener += "]"
	}

	var out []Directive
	pos := 0
	for {
		i := strings.Index(text[pos:], opener)
		if i < 0 {
			return out
		}
		start := pos + i + len(opener)

		var target string
		if targeted {
			n := wordLen(text[start:])
			if n == 0 || start+n >= len(text) || text[start+n] != ']' {
				pos = start
				continue
			}
			target = text[start : start+n]
			start += n + 1
		}

		end := len(text)
		if j := strings.Index(text[start:], opener); j >= 0 {
			end = start + j
		}
		payload := strings.TrimSpace(text[start:end])
		if payload != "" {
			out = append(out, Directive{Kind: kind, Target: target, Payload: payload, Ordinal: len(out)})
		}
		pos = end
	}
}

// wordLen returns the length of the leading run of [A-Za-z0-9_] in s.
func wordLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		return i
	}
	return len(s)
}
