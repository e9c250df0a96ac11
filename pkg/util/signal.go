package util

import "sync"

type SigHandler func(sender any, params ...any)

type sigHandlerEntry struct {
	id      int
	handler SigHandler
}

// Signals 进程内的同步事件总线
type Signals struct {
	mu     sync.RWMutex
	nextID int
	sigs   map[string][]sigHandlerEntry
}

var defaultSignals = NewSignals()

func NewSignals() *Signals {
	return &Signals{sigs: make(map[string][]sigHandlerEntry)}
}

// Sig returns the process-wide signal bus.
func Sig() *Signals {
	return defaultSignals
}

// Connect registers handler for event and returns an id usable with Disconnect.
func (s *Signals) Connect(event string, handler SigHandler) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.sigs[event] = append(s.sigs[event], sigHandlerEntry{id: s.nextID, handler: handler})
	return s.nextID
}

func (s *Signals) Disconnect(event string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.sigs[event]
	for i, e := range entries {
		if e.id == id {
			s.sigs[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Emit calls every handler of event in registration order.
func (s *Signals) Emit(event string, sender any, params ...any) {
	s.mu.RLock()
	entries := append([]sigHandlerEntry(nil), s.sigs[event]...)
	s.mu.RUnlock()
	for _, e := range entries {
		e.handler(sender, params...)
	}
}
