package daq

import "bytes"

// maxLineLength caps a line that never sees its newline, such as the
// stream of a board running at the wrong baud rate.
const maxLineLength = 4096

// lineBuffer assembles newline-terminated lines from arbitrary read chunks.
// A partial line is kept until the rest of it arrives.
type lineBuffer struct {
	pending []byte
}

// feed appends data and calls emit for every complete, non-empty line with
// surrounding whitespace removed. It returns the number of bytes discarded
// because a line grew past maxLineLength.
func (b *lineBuffer) feed(data []byte, emit func(line string)) (dropped int) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.pending = append(b.pending, data...)
			if len(b.pending) > maxLineLength {
				dropped += len(b.pending)
				b.pending = b.pending[:0]
			}
			return dropped
		}

		line := data[:i]
		if len(b.pending) > 0 {
			line = append(b.pending, line...)
		}
		data = data[i+1:]

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			emit(string(trimmed))
		}
		b.pending = b.pending[:0]
	}
	return dropped
}
