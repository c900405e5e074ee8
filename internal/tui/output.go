package tui

import "strings"

// DefaultBufferSize is the default number of output lines kept.
const DefaultBufferSize = 2000

// RingBuffer provides fixed-size line storage with O(1) appends.
// When the buffer is full, the oldest lines are discarded.
type RingBuffer struct {
	data  []string
	size  int
	head  int // next write position
	tail  int // oldest element
	count int
}

// NewRingBuffer creates a RingBuffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{
		data: make([]string, capacity),
		size: capacity,
	}
}

// Append adds a line, overwriting the oldest when full.
func (rb *RingBuffer) Append(line string) {
	rb.data[rb.head] = line
	rb.head = (rb.head + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.tail = (rb.tail + 1) % rb.size
	}
}

// Lines returns all lines from oldest to newest.
func (rb *RingBuffer) Lines() []string {
	if rb.count == 0 {
		return nil
	}
	result := make([]string, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.data[(rb.tail+i)%rb.size]
	}
	return result
}

// Last returns up to n of the newest lines.
func (rb *RingBuffer) Last(n int) []string {
	lines := rb.Lines()
	if n >= 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// Count returns the number of lines stored.
func (rb *RingBuffer) Count() int {
	return rb.count
}

// Clear removes all lines.
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.tail = 0
	rb.count = 0
}

// Output splits streamed text into lines stored in a ring buffer. The
// partial last line is kept separately until its newline arrives.
type Output struct {
	buffer  *RingBuffer
	partial strings.Builder
}

// NewOutput creates an Output holding up to capacity lines.
func NewOutput(capacity int) *Output {
	return &Output{buffer: NewRingBuffer(capacity)}
}

// Write appends streamed text.
func (o *Output) Write(text string) {
	o.partial.WriteString(text)
	buffered := o.partial.String()
	for {
		idx := strings.IndexByte(buffered, '\n')
		if idx == -1 {
			break
		}
		o.buffer.Append(buffered[:idx])
		buffered = buffered[idx+1:]
	}
	o.partial.Reset()
	o.partial.WriteString(buffered)
}

// Line appends a complete line, flushing any partial line first.
func (o *Output) Line(line string) {
	o.Flush()
	o.buffer.Append(line)
}

// Flush moves the partial line into the buffer.
func (o *Output) Flush() {
	if o.partial.Len() > 0 {
		o.buffer.Append(o.partial.String())
		o.partial.Reset()
	}
}

// Tail returns up to n of the newest lines, the partial line included.
func (o *Output) Tail(n int) []string {
	lines := o.buffer.Lines()
	if o.partial.Len() > 0 {
		lines = append(lines, o.partial.String())
	}
	if n >= 0 && len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
