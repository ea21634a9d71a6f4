package agent

import "strings"

// DeltaKind tags a parsed fragment of assistant output.
type DeltaKind string

const (
	// DeltaContent is plain assistant text.
	DeltaContent DeltaKind = "content"
	// DeltaThink is reasoning text inside <think> tags.
	DeltaThink DeltaKind = "think"
	// DeltaToolCall is tool-call markup inside <tool_call> tags.
	DeltaToolCall DeltaKind = "tool_call"
)

// ParsedDelta is one fragment the stream parser emits.
type ParsedDelta struct {
	Kind DeltaKind
	Text string
}

// Tags the parser recognises. Anything else that looks like markup passes
// through as content.
var streamTags = []string{"<think>", "</think>", "<tool_call>", "</tool_call>"}

// StreamParser splits an assistant content stream into content, think, and
// tool_call fragments. Some models emit function calls as XML-like spans
// inside the content stream instead of the structured tool_calls field;
// this parser handles that mode.
//
// The parser is stateful and single-threaded per turn. A partial tag that
// straddles a chunk boundary is held back and re-attempted on the next
// Feed, so splitting the same stream at different offsets yields identical
// concatenated fragments per kind. Open tags form a stack: the fragment
// kind is decided by the innermost open tag.
type StreamParser struct {
	stack []string
	buf   string
}

// NewStreamParser returns a parser at the top of a fresh stream.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Feed consumes the next chunk and returns the fragments it completed.
// Empty fragments are suppressed.
func (p *StreamParser) Feed(chunk string) []ParsedDelta {
	p.buf += chunk

	var out []ParsedDelta
	var text strings.Builder
	kind := p.kind()

	flush := func() {
		if text.Len() > 0 {
			out = append(out, ParsedDelta{Kind: kind, Text: text.String()})
			text.Reset()
		}
	}

	for len(p.buf) > 0 {
		lt := strings.IndexByte(p.buf, '<')
		if lt < 0 {
			text.WriteString(p.buf)
			p.buf = ""
			break
		}
		if lt > 0 {
			text.WriteString(p.buf[:lt])
			p.buf = p.buf[lt:]
		}

		tag, partial := p.matchTag()
		if partial {
			// A known tag may still be arriving; hold the suffix.
			break
		}
		if tag == "" {
			// Not a recognised tag; the '<' is literal text.
			text.WriteByte('<')
			p.buf = p.buf[1:]
			continue
		}

		flush()
		if strings.HasPrefix(tag, "</") {
			open := "<" + tag[2:]
			if len(p.stack) > 0 && p.stack[len(p.stack)-1] == open {
				p.stack = p.stack[:len(p.stack)-1]
			}
		} else {
			p.stack = append(p.stack, tag)
		}
		p.buf = p.buf[len(tag):]
		kind = p.kind()
	}

	flush()
	return out
}

// Flush drains whatever the straddle buffer still holds at stream end. A
// dangling partial tag is literal text at that point and is emitted under
// the currently open tag.
func (p *StreamParser) Flush() []ParsedDelta {
	if p.buf == "" {
		return nil
	}
	out := []ParsedDelta{{Kind: p.kind(), Text: p.buf}}
	p.buf = ""
	return out
}

// kind reports the fragment kind for the innermost open tag.
func (p *StreamParser) kind() DeltaKind {
	if len(p.stack) == 0 {
		return DeltaContent
	}
	switch p.stack[len(p.stack)-1] {
	case "<think>":
		return DeltaThink
	case "<tool_call>":
		return DeltaToolCall
	default:
		return DeltaContent
	}
}

// matchTag checks whether the buffer (which starts with '<') begins with a
// known tag. It returns the matched tag, or partial=true when the buffer
// is a proper prefix of one and more input is needed to decide.
func (p *StreamParser) matchTag() (tag string, partial bool) {
	for _, t := range streamTags {
		if strings.HasPrefix(p.buf, t) {
			return t, false
		}
		if len(p.buf) < len(t) && strings.HasPrefix(t, p.buf) {
			partial = true
		}
	}
	return "", partial
}
