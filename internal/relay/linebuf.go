package relay

import "bytes"

// LineBuffer reassembles newline-delimited lines from arbitrary byte chunks.
// A trailing partial line is held until a later chunk completes it.
type LineBuffer struct {
	residual []byte
}

// Feed appends chunk and calls fn for every line it completes, without the
// line terminator. fn returns false to stop; remaining bytes stay buffered.
func (b *LineBuffer) Feed(chunk []byte, fn func(line []byte) bool) bool {
	b.residual = append(b.residual, chunk...)
	for {
		i := bytes.IndexByte(b.residual, '\n')
		if i < 0 {
			return true
		}
		line := bytes.TrimSuffix(b.residual[:i], []byte("\r"))
		b.residual = b.residual[i+1:]
		if !fn(line) {
			return false
		}
	}
}

// Flush returns and clears any unterminated trailing line.
func (b *LineBuffer) Flush() []byte {
	rest := b.residual
	b.residual = nil
	return bytes.TrimSuffix(rest, []byte("\r"))
}
