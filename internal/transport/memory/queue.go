package memory

import "sync"

// queue feeds one listener from an unbounded FIFO so that posting never
// blocks on a slow receiver.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

func newQueue(fn func([]byte)) *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	go q.drain(fn)
	return q
}

func (q *queue) push(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, data)
	q.cond.Signal()
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Signal()
}

func (q *queue) drain(fn func([]byte)) {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		data := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		fn(data)
	}
}

// hub is a set of listener queues.
type hub struct {
	mu        sync.Mutex
	listeners map[int]*queue
	nextID    int
	closed    bool
}

func newHub() *hub {
	return &hub{listeners: make(map[int]*queue)}
}

func (h *hub) publish(data []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, q := range h.listeners {
		buf := make([]byte, len(data))
		copy(buf, data)
		q.push(buf)
	}
	return true
}

func (h *hub) listen(fn func([]byte)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = newQueue(fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			q, ok := h.listeners[id]
			delete(h.listeners, id)
			h.mu.Unlock()
			if ok {
				q.close()
			}
		})
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, q := range h.listeners {
		delete(h.listeners, id)
		q.close()
	}
}
