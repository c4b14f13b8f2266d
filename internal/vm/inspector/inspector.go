// Package inspector exposes a running VM's execution events over a
// websocket, for an external debugger or a live dashboard. It implements
// vm.Hook purely as an observer: every callback pushes a JSON event onto a
// buffered channel and returns immediately, so a slow or absent client never
// stalls dispatch (spec §5's ordering guarantee is about the guest program,
// not about this side channel, but a blocking Hook would still be a bug).
package inspector

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"loxcore/internal/bytecode"
	"loxcore/internal/value"
	"loxcore/internal/vm"
	"loxcore/internal/vm/diag"
)

// Event is one observation pushed to every connected client.
type Event struct {
	Kind     string `json:"kind"` // "instruction", "call", "return", "error", "stats"
	Opcode   string `json:"opcode,omitempty"`
	Function string `json:"function,omitempty"`
	Argc     int    `json:"argc,omitempty"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`

	// Heap is populated only on "stats" events, a diag.Snapshot of the
	// attached VM's allocator at the moment the call event fired.
	Heap *diag.Snapshot `json:"heap,omitempty"`
}

// Server fans VM events out to any number of connected websocket clients.
// It is attached to a VM with vm.AttachHook(server).
type Server struct {
	upgrader websocket.Upgrader
	events   chan Event

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New returns a Server with its internal event buffer sized for bursty
// dispatch loops; Serve must be running for clients to actually receive
// anything.
func New() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		events:  make(chan Event, 256),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades an HTTP request to a websocket and registers the
// resulting connection as an event recipient until it disconnects.
func (s *Server) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// The only reads this connection ever does are to detect the peer
	// closing; the inspector protocol is write-only from the VM's side.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Serve runs the broadcast loop until ctx is cancelled, fanning every
// buffered Event out to all currently-connected clients. It also starts the
// given listener's HTTP server under the same errgroup so both halves shut
// down together.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.Handler)
	httpServer := &http.Server{Handler: mux}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Serve(ln)
	})

	g.Go(func() error {
		<-ctx.Done()
		return httpServer.Close()
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-s.events:
				s.broadcast(ev)
			}
		}
	})

	return g.Wait()
}

func (s *Server) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("inspector: marshal event: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// emit pushes ev onto the buffer, dropping it rather than blocking if the
// buffer is full — an overwhelmed inspector must never slow the VM down.
func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// OnInstruction implements vm.Hook.
func (s *Server) OnInstruction(_ *vm.VM, _ *vm.CallFrame, op bytecode.OpCode) {
	s.emit(Event{Kind: "instruction", Opcode: op.String()})
}

// OnCall implements vm.Hook. Every call is also a convenient, already-rare
// safe point to snapshot heap accounting: call frequency is orders of
// magnitude lower than instruction frequency, so this never turns into a
// humanize/pretty call on every single opcode.
func (s *Server) OnCall(v *vm.VM, name string, argc int) {
	s.emit(Event{Kind: "call", Function: name, Argc: argc})
	snap := diag.Summarize(v.Heap())
	s.emit(Event{Kind: "stats", Heap: &snap})
}

// OnReturn implements vm.Hook.
func (s *Server) OnReturn(_ *vm.VM, result value.Value) {
	s.emit(Event{Kind: "return", Result: value.TypeName(result)})
}

// OnError implements vm.Hook.
func (s *Server) OnError(_ *vm.VM, err error) {
	s.emit(Event{Kind: "error", Error: err.Error()})
}
