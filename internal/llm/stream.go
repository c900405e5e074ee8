package llm

import (
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// ToolCallMarker separates narrative text from the tool-call payload.
const ToolCallMarker = "TOOL_CALL:"

// Stream decodes one response into events. It is pull based: each call to
// Recv reads from the network only as far as needed to produce the next
// event. A Stream is not safe for concurrent use.
type Stream struct {
	src    deltaSource
	filter toolFilter
	log    zerolog.Logger

	queue []Event
	// held is trailing text that may be the start of a marker split
	// across deltas.
	held       string
	collecting bool
	tail       strings.Builder
	finished   bool
}

func newStream(src deltaSource, filter toolFilter, log zerolog.Logger) *Stream {
	return &Stream{src: src, filter: filter, log: log}
}

// newErrorStream returns a stream whose only event is a terminal error.
func newErrorStream(err error) *Stream {
	return &Stream{queue: []Event{ErrorEvent(err)}, finished: true}
}

// Recv returns the next event. After the final event it returns io.EOF.
func (s *Stream) Recv() (Event, error) {
	for len(s.queue) == 0 {
		if s.finished {
			return Event{}, io.EOF
		}
		s.pull()
	}

	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, nil
}

// Close releases the underlying response. Events not yet received are
// discarded.
func (s *Stream) Close() error {
	s.finished = true
	s.queue = nil
	if s.src == nil {
		return nil
	}
	return s.src.Close()
}

func (s *Stream) pull() {
	delta, err := s.src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finish()
			return
		}
		s.fail(err)
		return
	}
	s.feed(delta)
}

func (s *Stream) feed(delta string) {
	if s.collecting {
		s.tail.WriteString(delta)
		return
	}

	text := s.held + delta
	s.held = ""

	if idx := strings.Index(text, ToolCallMarker); idx >= 0 {
		if idx > 0 {
			s.emit(TextEvent(text[:idx], false))
		}
		s.collecting = true
		s.tail.WriteString(text[idx+len(ToolCallMarker):])
		s.log.Debug().Msg("tool call marker found")
		return
	}

	keep := partialMarkerSuffix(text)
	if out := text[:len(text)-keep]; out != "" {
		s.emit(TextEvent(out, false))
	}
	s.held = text[len(text)-keep:]
}

func (s *Stream) finish() {
	defer s.closeSource()

	if !s.collecting {
		if s.held != "" {
			s.emit(TextEvent(s.held, false))
			s.held = ""
		}
		s.emit(TextEvent("", true))
		return
	}

	calls, err := parseToolCalls(s.tail.String())
	if err != nil {
		s.log.Debug().Err(err).Msg("tool call payload rejected")
		s.emit(ErrorEvent(err))
		return
	}
	calls, err = s.filter.apply(calls, s.log)
	if err != nil {
		s.emit(ErrorEvent(err))
		return
	}
	s.emit(ToolCallEvent(calls))
}

func (s *Stream) fail(err error) {
	defer s.closeSource()

	if !s.collecting && s.held != "" {
		s.emit(TextEvent(s.held, false))
		s.held = ""
	}
	var te *TransportError
	if !errors.As(err, &te) {
		err = &TransportError{Err: err}
	}
	s.emit(ErrorEvent(err))
}

func (s *Stream) emit(ev Event) {
	s.queue = append(s.queue, ev)
	if ev.Final {
		s.finished = true
	}
}

func (s *Stream) closeSource() {
	if s.src != nil {
		_ = s.src.Close()
	}
}

// partialMarkerSuffix returns the length of the longest suffix of text that
// is a proper prefix of the marker.
func partialMarkerSuffix(text string) int {
	limit := len(ToolCallMarker) - 1
	if len(text) < limit {
		limit = len(text)
	}
	for n := limit; n > 0; n-- {
		if strings.HasPrefix(ToolCallMarker, text[len(text)-n:]) {
			return n
		}
	}
	return 0
}

// Collect drains the stream and returns every event. The stream is closed.
func Collect(s *Stream) ([]Event, error) {
	defer s.Close()

	var events []Event
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
