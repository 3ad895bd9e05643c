// Released under an MIT license. See LICENSE.

// Package wire implements the Emacs-side wire protocol: newline-delimited
// s-expression request/response framed over the bootstrap reader/writer,
// plus asynchronous "(event <id> <tag> ...)" frames queued and dispatched
// to handlers registered by (id, tag) pairs. The Emacs UI event loop
// itself stays out of scope; this package is only the framer and
// dispatcher any IDE integration speaks against.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/suolang/suo/internal/reader"
	"github.com/suolang/suo/internal/runtime"
	"github.com/suolang/suo/internal/types"
	"github.com/suolang/suo/internal/value"
	"github.com/suolang/suo/internal/writer"
)

// RequestHandler evaluates one decoded request form and returns the value
// to frame back as a response. A non-nil error is a fatal protocol
// error: the caller's Serve loop stops.
type RequestHandler func(form value.Word) (value.Word, error)

// EventKey identifies one registered event handler: the id the event was
// raised against and the event's tag.
type EventKey struct {
	ID  string
	Tag string
}

// EventHandler receives an event's remaining payload values, in order.
type EventHandler func(payload []value.Word)

// Server frames requests and responses over one connection (typically
// stdin/stdout, used by environments that drive Suo) and dispatches
// queued events to registered handlers.
type Server struct {
	rt      *runtime.Runtime
	in      *bufio.Scanner
	out     *bufio.Writer
	handle  RequestHandler
	label   string

	mu       sync.Mutex
	handlers map[EventKey]EventHandler
	queue    []queuedEvent
}

type queuedEvent struct {
	key     EventKey
	payload []value.Word
}

// NewServer creates a Server reading newline-delimited request frames
// from in and writing response/event frames to out, evaluating each
// request with handle.
func NewServer(rt *runtime.Runtime, in io.Reader, out io.Writer, handle RequestHandler) *Server {
	return &Server{
		rt:       rt,
		in:       bufio.NewScanner(in),
		out:      bufio.NewWriter(out),
		handle:   handle,
		label:    "wire",
		handlers: make(map[EventKey]EventHandler),
	}
}

// OnEvent registers f to run whenever an "(event id tag ...)" frame
// naming this exact (id, tag) pair is dispatched (events are queued by
// QueueEvent below and drained after each response). Registering the same
// key twice replaces the earlier handler.
func (s *Server) OnEvent(key EventKey, f EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[key] = f
}

// QueueEvent enqueues an event frame for dispatch. Serve drains the queue
// once per request/response round-trip, matching // "events are queued and dispatched to handlers".
func (s *Server) QueueEvent(id, tag string, payload []value.Word) {
	s.mu.Lock()
	s.queue = append(s.queue, queuedEvent{key: EventKey{ID: id, Tag: tag}, payload: payload})
	s.mu.Unlock()
}

// drainEvents dispatches every queued event to its registered handler (if
// any) and writes the corresponding "(event id tag ...)" frame to out so
// the remote side observes it too.
func (s *Server) drainEvents() error {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, ev := range pending {
		if err := s.writeEventFrame(ev); err != nil {
			return err
		}
		if h, ok := s.handlers[ev.key]; ok {
			h(ev.payload)
		}
	}
	return nil
}

func (s *Server) writeEventFrame(ev queuedEvent) error {
	items := []value.Word{
		s.symbol("event"),
		s.stringWord(ev.key.ID),
		s.symbol(ev.key.Tag),
	}
	items = append(items, ev.payload...)
	frame := s.list(items)
	return s.writeFrame(frame)
}

func (s *Server) symbol(name string) value.Word { return s.rt.Symbols.Intern(name) }

func (s *Server) stringWord(str string) value.Word {
	return types.NewString(s.rt.Heap, s.rt.WellKnown, str)
}

// list builds a proper s-expression list out of items, the "(tag ...)"
// frame shape the protocol speaks, as opposed to internal/writer's
// "[...]" vector syntax.
func (s *Server) list(items []value.Word) value.Word {
	tail := value.Nil
	for i := len(items) - 1; i >= 0; i-- {
		tail = s.rt.Heap.AllocatePair(items[i], tail)
	}
	return tail
}

// writeFrame prints one value on its own line, the newline-delimited
// s-expression request/response encoding this package speaks.
func (s *Server) writeFrame(v value.Word) error {
	w := writer.New(s.rt.Heap, s.rt.WellKnown, s.out)
	if err := w.Write(v); err != nil {
		return err
	}
	if err := s.out.WriteByte('\n'); err != nil {
		return err
	}
	return s.out.Flush()
}

// Serve runs the request/response loop until in is exhausted or a fatal
// protocol error occurs. Each input line is read as exactly one top-level
// form (package reader's whole-buffer contract makes each line its own
// Reader), evaluated by s.handle, and echoed back as a response frame
// "(ok <result>)"; a request-decoding or handler error is written as an
// "(error <message>)" frame, and since request errors are fatal, ends
// the loop.
func (s *Server) Serve() error {
	for s.in.Scan() {
		line := s.in.Text()
		if line == "" {
			continue
		}

		form, err := s.decode(line)
		if err != nil {
			_ = s.writeFrame(s.errorFrame(err))
			return err
		}

		result, err := s.handle(form)
		if err != nil {
			_ = s.writeFrame(s.errorFrame(err))
			return err
		}

		resp := s.list([]value.Word{s.symbol("ok"), result})
		if err := s.writeFrame(resp); err != nil {
			return err
		}
		if err := s.drainEvents(); err != nil {
			return err
		}
	}
	return s.in.Err()
}

func (s *Server) errorFrame(err error) value.Word {
	return s.list([]value.Word{
		s.symbol("error"),
		s.stringWord(err.Error()),
	})
}

// decode reads exactly one top-level form from line using a fresh
// reader.Reader (package reader's Reader is not incremental; one line is
// one buffer).
func (s *Server) decode(line string) (value.Word, error) {
	r := reader.New(s.rt.Heap, s.rt.WellKnown, s.rt.Symbols, line, s.label)
	v, ok, err := r.ReadOne()
	if err != nil {
		return value.Unspecified, fmt.Errorf("%s: %w", s.label, err)
	}
	if !ok {
		return value.Unspecified, fmt.Errorf("%s: empty request line", s.label)
	}
	return v, nil
}
