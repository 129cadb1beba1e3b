package engine

import "sync"

// Event is one progress message fanned out to subscribers and mirrored on the
// websocket wire.
type Event struct {
	Type     string `json:"type"` // log | step | complete | error
	Message  string `json:"message,omitempty"`
	Step     string `json:"step,omitempty"`
	Progress int    `json:"progress"`
	Status   string `json:"status,omitempty"`
}

const subscriberBuffer = 256

// Broker fans events out to any number of subscribers. Publishing never
// blocks: a subscriber that falls behind its buffer loses events and must
// resync from the run snapshot and the persisted log.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's buffered event channel.
type Subscription struct {
	C      chan Event
	broker *Broker
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. The caller must Close it when done.
func (b *Broker) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan Event, subscriberBuffer), broker: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.broker.mu.Lock()
	if _, ok := s.broker.subs[s]; ok {
		delete(s.broker.subs, s)
		close(s.C)
	}
	s.broker.mu.Unlock()
}

// Publish delivers ev to every subscriber with buffer room. Slow subscribers
// are skipped, never waited on.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
