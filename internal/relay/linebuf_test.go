package relay

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBuffer(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   string
	}{
		{"single chunk", []string{"a\nb\n"}, []string{"a", "b"}, ""},
		{"split mid line", []string{"da", "ta: 1\nda", "ta: 2\n"}, []string{"data: 1", "data: 2"}, ""},
		{"crlf", []string{"x\r\n", "y\r", "\n"}, []string{"x", "y"}, ""},
		{"trailing partial", []string{"a\npart"}, []string{"a"}, "part"},
		{"empty lines kept", []string{"\n\n"}, []string{"", ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lb LineBuffer
			var got []string
			for _, c := range tt.chunks {
				lb.Feed([]byte(c), func(line []byte) bool {
					got = append(got, string(line))
					return true
				})
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rest, string(lb.Flush()))
		})
	}
}

func TestLineBuffer_StopKeepsRemainder(t *testing.T) {
	var lb LineBuffer
	var got []string
	ok := lb.Feed([]byte("one\ntwo\nthree"), func(line []byte) bool {
		got = append(got, string(line))
		return false
	})
	assert.False(t, ok, "Feed reports the stop")
	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, "two\nthree", string(lb.Flush()))
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	require.False(t, w.Started())
	require.NoError(t, w.Close())
	require.Zero(t, rec.Body.Len(), "Close before Open wrote %q", rec.Body.String())

	require.NoError(t, w.Send(Frame{Content: "hi"}))
	require.NoError(t, w.Send(Frame{Done: true}))
	require.NoError(t, w.Close())
	_ = w.Close()

	assert.Equal(t, "data: {\"content\":\"hi\"}\n\ndata: {\"done\":true}\n\ndata: [DONE]\n\n", rec.Body.String())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestReplayTokens(t *testing.T) {
	for _, s := range []string{"", "one", "one two  three\nfour ", "  leading", "tabs\tand\nnewlines"} {
		assert.Equal(t, s, strings.Join(replayTokens(s), ""), "replayTokens(%q) does not rejoin", s)
	}
	got := replayTokens("a b c")
	require.Len(t, got, 3)
	assert.Equal(t, "a ", got[0])
}
