package archive

import "sync"

// hooks is an append-only registry of listeners for one event kind.
// Binding happens at setup time from any goroutine; emit is called
// only by the consumer loop and broadcasts synchronously in
// registration order.
type hooks[T any] struct {
	mu  sync.Mutex
	fns []func(T)
}

func (h *hooks[T]) bind(f func(T)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, f)
}

func (h *hooks[T]) emit(v T) {
	h.mu.Lock()
	fns := h.fns
	h.mu.Unlock()
	for _, f := range fns {
		f(v)
	}
}

// valuedHook is a synchronous pull callback returning a value. Unlike
// hooks it admits exactly one binding: the value must come from a
// single source (the editable buffer).
type valuedHook[T, R any] struct {
	mu sync.Mutex
	fn func(T) R
}

func (h *valuedHook[T, R]) bind(f func(T) R) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fn != nil {
		panic("archive: buffer read callback already bound")
	}
	h.fn = f
}

// call invokes the bound callback. Returns the zero value if nothing
// is bound.
func (h *valuedHook[T, R]) call(v T) R {
	h.mu.Lock()
	fn := h.fn
	h.mu.Unlock()
	var zero R
	if fn == nil {
		return zero
	}
	return fn(v)
}
