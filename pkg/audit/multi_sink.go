package audit

import (
	"context"
	"sync"
)

// queueDepth bounds the async delivery backlog. Records past the bound are
// dropped rather than blocking the decision path.
const queueDepth = 1024

// MultiSink fans a decision out to several sinks. In async mode (the
// default) Record enqueues and returns immediately; a single background
// worker drains the queue and writes each decision to every sink. When the
// queue is full the record is dropped: the audit trail is best effort and
// never backpressures decisions.
type MultiSink struct {
	sinks []Sink
	async bool

	mu      sync.Mutex
	closed  bool
	queue   chan *Decision
	drained chan struct{}
}

// NewMultiSink creates an asynchronous fan-out over the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{
		sinks:   sinks,
		async:   true,
		queue:   make(chan *Decision, queueDepth),
		drained: make(chan struct{}),
	}
	go m.run()
	return m
}

// SetAsync toggles asynchronous delivery. Synchronous mode is intended for
// tests that assert on sink contents.
func (m *MultiSink) SetAsync(async bool) {
	m.async = async
}

func (m *MultiSink) run() {
	defer close(m.drained)
	for d := range m.queue {
		for _, sink := range m.sinks {
			_ = sink.Record(context.Background(), d)
		}
	}
}

// Record implements Sink. Individual sink failures are swallowed: one
// broken destination must not starve the others or the caller.
func (m *MultiSink) Record(ctx context.Context, d *Decision) error {
	if !m.async {
		var firstErr error
		for _, sink := range m.sinks {
			if err := sink.Record(ctx, d); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	select {
	case m.queue <- d:
	default:
		// Queue full: drop rather than block the decision path.
	}
	return nil
}

// Wait stops accepting records and blocks until the queue is drained. Used
// on shutdown.
func (m *MultiSink) Wait() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()
	<-m.drained
}
