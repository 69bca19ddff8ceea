package push

import (
	"fmt"
	"sort"
	"sync"
)

// ListenerID identifies one registered listener.
type ListenerID uint64

// Listener is called for every notification on its collection.
//
// Listeners run on the client goroutine and should return quickly.
// A returned error or a panic is logged; it never removes the listener
// and never stops other listeners from being called.
type Listener func(n Notification) error

// Registry maps collection names to their listeners.
//
// A collection is present only while it has at least one listener.
// Mutations happen on the client goroutine; the lock exists so that
// Topics and ListenerCount can be read from anywhere.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[ListenerID]Listener
}

func newRegistry() *Registry {
	return &Registry{topics: make(map[string]map[ListenerID]Listener)}
}

// add registers l under topic and reports whether topic is new.
func (r *Registry) add(topic string, id ListenerID, l Listener) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listeners, ok := r.topics[topic]
	if !ok {
		listeners = make(map[ListenerID]Listener)
		r.topics[topic] = listeners
	}
	listeners[id] = l
	return !ok
}

// remove deletes a listener. last is true when topic lost its final
// listener and was deleted.
func (r *Registry) remove(topic string, id ListenerID) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listeners, ok := r.topics[topic]
	if !ok {
		return false, false
	}
	if _, ok := listeners[id]; !ok {
		return false, false
	}
	delete(listeners, id)
	if len(listeners) == 0 {
		delete(r.topics, topic)
		return true, true
	}
	return true, false
}

// Topics returns the registered collections, sorted.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ListenerCount returns the number of listeners on topic.
func (r *Registry) ListenerCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// snapshot copies the listeners of topic so they can be called unlocked.
func (r *Registry) snapshot(topic string) []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listeners := r.topics[topic]
	if len(listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(listeners))
	for _, l := range listeners {
		out = append(out, l)
	}
	return out
}

// dispatch calls every listener of n.Topic with its own copy of n and
// returns how many listeners were called.
func (r *Registry) dispatch(n Notification, logger Logger) int {
	listeners := r.snapshot(n.Topic)
	for _, l := range listeners {
		if err := invokeListener(l, n.clone()); err != nil {
			logger.Warn("push listener failed",
				"collection", n.Topic,
				"key", n.ResourceKey,
				"error", err,
			)
		}
	}
	return len(listeners)
}

// invokeListener calls l, turning a panic into an error.
func invokeListener(l Listener, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(n)
}
