// Package trigger implements per-name wait subscriptions and prefix-based
// watch streams over a workspace's commit counter, per SPEC_FULL.md §4.4.
// Subscriptions are tagged-union records owned by a Registry and
// referenced from per-name queues by a stable index, so a connection
// tearing down can invalidate its subscriptions in O(1) without scanning
// every queue (Design Note 3 of SPEC_FULL.md).
package trigger

import (
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Event is one delivery to a Watch stream: the name written, its new
// value, and the commit id it was stamped with.
type Event struct {
	Name   string
	Value  string
	Commit uint64
}

type kind int

const (
	kindWait kind = iota
	kindWatch
)

// subscription is the tagged-union record described in SPEC_FULL.md §4.4.
// Only the fields relevant to kind are populated.
type subscription struct {
	kind kind

	// Wait fields.
	name     string
	pattern  string
	deadline time.Time
	reply    chan<- waitResult

	// Watch fields.
	prefix string
	sink   chan<- Event

	cursor uint64
	valid  bool
}

type waitResult struct {
	matched bool
}

// Reader is the minimal read surface trigger needs from a workspace.
type Reader interface {
	Read(name string) (value string, commit uint64, ok bool)
}

// Registry owns every active subscription and the per-name index used to
// notify them cheaply after a write.
type Registry struct {
	// mu guards subs/byName/next; every connection goroutine touches it via
	// register/cancel/Notify.
	mu   deadlock.Mutex
	subs map[int]*subscription
	next int
	// byName indexes wait subscriptions by exact name; watch
	// subscriptions are scanned directly since there are normally far
	// fewer active watches than waits.
	byName map[string][]int
	reader Reader
}

// NewRegistry builds a Registry backed by reader for re-evaluating
// patterns against current values.
func NewRegistry(reader Reader) *Registry {
	return &Registry{
		subs:   make(map[int]*subscription),
		byName: make(map[string][]int),
		reader: reader,
	}
}

func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	}
	return pattern == value
}

// Wait blocks until name's value matches pattern, the deadline passes, or
// ctx-equivalent cancellation happens via stop. A value already matching
// at registration time returns immediately (spec.md §4.4).
func (r *Registry) Wait(name, pattern string, timeout time.Duration, stop <-chan struct{}) bool {
	if value, _, ok := r.reader.Read(name); ok && matchPattern(pattern, value) {
		return true
	}

	reply := make(chan waitResult, 1)
	idx := r.register(&subscription{
		kind:     kindWait,
		name:     name,
		pattern:  pattern,
		deadline: time.Now().Add(timeout),
		reply:    reply,
		valid:    true,
	})
	defer r.cancel(idx)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		return res.matched
	case <-timer.C:
		return false
	case <-stop:
		return false
	}
}

// Watch returns a channel of Events for every future write whose name has
// prefix, and a cancel func that unregisters it. The channel is never
// closed by a send; the caller stops receiving once cancel is called.
func (r *Registry) Watch(prefix string) (<-chan Event, func()) {
	sink := make(chan Event, 16)
	idx := r.register(&subscription{
		kind:   kindWatch,
		prefix: prefix,
		sink:   sink,
		valid:  true,
	})
	return sink, func() { r.cancel(idx) }
}

func (r *Registry) register(s *subscription) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.next
	r.next++
	r.subs[idx] = s
	if s.kind == kindWait {
		r.byName[s.name] = append(r.byName[s.name], idx)
	}
	return idx
}

// cancel invalidates subscription idx in O(1): it deletes from subs but
// deliberately leaves idx in byName's slice for its name, since removing
// it would require scanning that name's queue. Notify skips stale entries
// by checking subs[idx] == nil, so a leftover index is harmless beyond the
// memory of an int; per-name queues are bounded in practice by how many
// waiters ever touched that name.
func (r *Registry) cancel(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[idx]; ok {
		s.valid = false
	}
	delete(r.subs, idx)
}

// Notify is called by the writer after every commit, with the name just
// written, its new value, and the commit id it was stamped with. It wakes
// any matching wait and forwards to any matching watch.
func (r *Registry) Notify(name, value string, commit uint64) {
	r.mu.Lock()
	var toWake []*subscription
	var toStream []*subscription

	for _, idx := range r.byName[name] {
		s := r.subs[idx]
		if s == nil || !s.valid {
			continue
		}
		if matchPattern(s.pattern, value) {
			toWake = append(toWake, s)
		}
	}
	for _, s := range r.subs {
		if s.kind == kindWatch && s.valid && strings.HasPrefix(name, s.prefix) {
			toStream = append(toStream, s)
		}
	}
	r.mu.Unlock()

	for _, s := range toWake {
		select {
		case s.reply <- waitResult{matched: true}:
		default:
		}
	}
	for _, s := range toStream {
		ev := Event{Name: name, Value: value, Commit: commit}
		select {
		case s.sink <- ev:
		default:
			// Last-value-wins coalescing: drop the stale pending event
			// and push the latest one, per spec.md §4.4 ordering rules.
			select {
			case <-s.sink:
			default:
			}
			select {
			case s.sink <- ev:
			default:
			}
		}
	}
}

// Len reports the number of currently active subscriptions, exposed for
// the waiter-queue-depth metric in SPEC_FULL.md §2.2.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
