package tui

import (
	"strings"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, l := range []string{"a", "b", "c", "d"} {
		rb.Append(l)
	}

	if got := strings.Join(rb.Lines(), ","); got != "b,c,d" {
		t.Errorf("Lines = %s, want b,c,d", got)
	}
	if rb.Count() != 3 {
		t.Errorf("Count = %d, want 3", rb.Count())
	}
	if got := strings.Join(rb.Last(2), ","); got != "c,d" {
		t.Errorf("Last(2) = %s", got)
	}

	rb.Clear()
	if rb.Lines() != nil || rb.Count() != 0 {
		t.Error("buffer not cleared")
	}
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	if rb := NewRingBuffer(0); rb.size != DefaultBufferSize {
		t.Errorf("size = %d, want %d", rb.size, DefaultBufferSize)
	}
}

func TestOutput(t *testing.T) {
	o := NewOutput(10)
	o.Write("Hel")
	o.Write("lo\nwor")

	if got := strings.Join(o.Tail(-1), "|"); got != "Hello|wor" {
		t.Errorf("Tail = %q", got)
	}

	o.Write("ld\n\nend")
	o.Line("notice")
	if got := strings.Join(o.Tail(-1), "|"); got != "Hello|world||end|notice" {
		t.Errorf("Tail = %q", got)
	}
	if got := strings.Join(o.Tail(2), "|"); got != "end|notice" {
		t.Errorf("Tail(2) = %q", got)
	}
}
