package engine

import "sync"

const (
	// subscriberBufferSize is the live-line buffer of each subscriber.
	// Lines are dropped if a subscriber falls this far behind.
	subscriberBufferSize = 64

	// backlogSize bounds the lines replayed to a subscriber that joins late.
	backlogSize = 256

	// maxClosedTopics bounds how many finished jobs keep their backlog.
	maxClosedTopics = 512
)

// LogBroker fans job log lines out to subscribers. It is safe for
// concurrent use.
//
// Each topic keeps a bounded backlog, so a subscriber that joins mid-run
// first receives the lines it missed. Finished topics stay around, oldest
// evicted first, so that a subscriber arriving after the job ended gets the
// tail of the log and then a closed channel. Subscribing to a topic that was
// never opened, or has been evicted, yields a closed channel; the job's
// stored log is the source for those.
type LogBroker struct {
	mu     sync.Mutex
	topics map[string]*logTopic
	closed []string
}

type logTopic struct {
	subs    map[int]chan string
	nextID  int
	backlog []string
	closed  bool
}

// NewLogBroker creates a new log broker.
func NewLogBroker() *LogBroker {
	return &LogBroker{
		topics: make(map[string]*logTopic),
	}
}

// Open starts recording lines for jobID and reports whether it created the
// topic. Lines published before Open are dropped.
func (b *LogBroker) Open(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[jobID]; ok {
		return false
	}
	b.topics[jobID] = &logTopic{subs: make(map[int]chan string)}
	return true
}

// drop forgets a topic that never carried a job.
func (b *LogBroker) drop(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[jobID]; ok && !t.closed {
		for _, ch := range t.subs {
			close(ch)
		}
		delete(b.topics, jobID)
	}
}

// Subscribe returns a channel that first yields the job's backlog and then
// its live lines, plus an unsubscribe function. The channel is closed when
// the job finishes, immediately after the backlog if it already has.
func (b *LogBroker) Subscribe(jobID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		ch := make(chan string)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan string, subscriberBufferSize+len(t.backlog))
	for _, line := range t.backlog {
		ch <- line
	}
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish records line in the job's backlog and sends it to all current
// subscribers, dropping it for those whose buffers are full.
func (b *LogBroker) Publish(jobID string, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok || t.closed {
		return
	}

	t.backlog = append(t.backlog, line)
	if len(t.backlog) > backlogSize {
		t.backlog = t.backlog[len(t.backlog)-backlogSize:]
	}

	for _, ch := range t.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// Close signals that no more lines will be published for jobID and closes
// every subscriber channel. Closing an unknown topic is a no-op.
func (b *LogBroker) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok || t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}

	b.closed = append(b.closed, jobID)
	if len(b.closed) > maxClosedTopics {
		delete(b.topics, b.closed[0])
		b.closed = b.closed[1:]
	}
}

// Known reports whether the broker still holds a topic for jobID.
func (b *LogBroker) Known(jobID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[jobID]
	return ok
}
