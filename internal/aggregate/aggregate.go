// Package aggregate turns the ordered fragments of a streamed model reply
// into one finished (answer, think) pair. Reasoning content is carried inside
// <think>...</think> delimiters embedded in the raw stream; the first matched
// pair is extracted, an unclosed <think> claims the rest of the buffer, and
// any later bracketed tags are stripped from the answer.
package aggregate

import (
	"errors"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// FallbackAnswer is what callers show when the model produced nothing usable.
const FallbackAnswer = "I'm sorry, but I couldn't generate a meaningful response."

// ErrEmptyResult reports that normalization left no visible answer. It is a
// distinct outcome, not a success with an empty string.
var ErrEmptyResult = errors.New("empty model response")

// Result is a finished reply.
type Result struct {
	Answer string
	Think  string
}

// Aggregator accumulates stream fragments. The zero value is ready to use.
// It is driven externally: callers Write each fragment in arrival order and
// call Finalize once the transport signals end of stream.
type Aggregator struct {
	raw strings.Builder
}

// Write appends one fragment. Empty fragments are harmless.
func (a *Aggregator) Write(fragment string) {
	a.raw.WriteString(fragment)
}

// Finalize produces the (answer, think) pair from everything written so far.
// The output depends only on the fragment sequence, never on timing. If the
// normalized answer is empty, Finalize returns ErrEmptyResult alongside the
// result so callers can substitute FallbackAnswer.
func (a *Aggregator) Finalize() (Result, error) {
	body, think := splitThink(a.raw.String())
	res := Result{
		Answer: normalize(stripTags(body)),
		Think:  normalize(stripTags(think)),
	}
	if res.Answer == "" {
		return res, ErrEmptyResult
	}
	return res, nil
}

// splitThink removes the first <think>...</think> span from raw and returns
// the remaining body plus the delimited content. With no opening marker the
// body is the whole buffer; with no closing marker everything after the
// opening marker is think content.
func splitThink(raw string) (body, think string) {
	open := strings.Index(raw, thinkOpen)
	if open < 0 {
		return raw, ""
	}
	rest := raw[open+len(thinkOpen):]
	end := strings.Index(rest, thinkClose)
	if end < 0 {
		return raw[:open], rest
	}
	return raw[:open] + rest[end+len(thinkClose):], rest[:end]
}

// stripTags removes bracketed <...> spans. A lone '<' with no closing '>' is
// kept verbatim, so "a < b" survives.
func stripTags(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			b.WriteString(s)
			break
		}
		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		s = s[i+j+1:]
	}
	return b.String()
}

// normalize collapses whitespace runs (including newlines) to single spaces
// and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
