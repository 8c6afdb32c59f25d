package assistant

import (
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/clinrag/internal/llm"
)

// maxSearchWindow bounds how far back from the cap a sentence end is sought.
const maxSearchWindow = 100

// LimitResponseLength cuts s to at most max runes. When a period falls in
// the trailing window (a fifth of max, at most 100 runes) the cut lands
// just after the last one; otherwise it is a hard cut at max.
func LimitResponseLength(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	window := min(maxSearchWindow, max/5)
	for i := max - 1; i >= max-window; i-- {
		if r[i] == '.' {
			return string(r[:i+1])
		}
	}
	return string(r[:max])
}

// streamLimiter applies LimitResponseLength to a stream. Once the
// accumulated text passes the cap it emits what still fits, the truncation
// marker, and stops the stream.
type streamLimiter struct {
	max  int
	emit func(string) error

	full      strings.Builder
	fullRunes int
	sent      int
	truncated bool
}

func newStreamLimiter(max int, emit func(string) error) *streamLimiter {
	return &streamLimiter{max: max, emit: emit}
}

func (l *streamLimiter) write(chunk string) error {
	if l.truncated {
		return llm.ErrStopStream
	}
	l.full.WriteString(chunk)
	l.fullRunes += utf8.RuneCountInString(chunk)

	if l.max <= 0 || l.fullRunes <= l.max {
		l.sent += utf8.RuneCountInString(chunk)
		return l.emit(chunk)
	}

	l.truncated = true
	limited := []rune(LimitResponseLength(l.full.String(), l.max))
	if len(limited) > l.sent {
		if err := l.emit(string(limited[l.sent:])); err != nil {
			return err
		}
		l.sent = len(limited)
	}
	if err := l.emit(TruncationMarker); err != nil {
		return err
	}
	return llm.ErrStopStream
}

// text is what the client saw, marker included.
func (l *streamLimiter) text() string {
	if !l.truncated {
		return l.full.String()
	}
	return string([]rune(l.full.String())[:l.sent]) + TruncationMarker
}

func (l *streamLimiter) delivered() bool {
	return l.sent > 0 || l.truncated
}
