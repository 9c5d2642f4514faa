// Package memory keeps completion events in process memory for tests and local runs.
package memory

import (
	"context"
	"strconv"
	"sync"
)

// PublishedMessage is one recorded Publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload any
}

// Publisher implements internship.Publisher without a broker.
type Publisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	failure  error
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailWith makes later Publish calls return err until it is called with nil.
func (p *Publisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failure = err
}

// Publish appends the event and returns its sequence-based ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failure != nil {
		return "", p.failure
	}
	msg := PublishedMessage{
		ID:      "memory-" + strconv.Itoa(len(p.messages)+1),
		Topic:   topic,
		Payload: payload,
	}
	p.messages = append(p.messages, msg)
	return msg.ID, nil
}

// Messages returns a copy of every recorded event in publish order.
func (p *Publisher) Messages() []PublishedMessage {
	return p.filter(func(PublishedMessage) bool { return true })
}

// OnTopic returns the recorded events for one topic.
func (p *Publisher) OnTopic(topic string) []PublishedMessage {
	return p.filter(func(m PublishedMessage) bool { return m.Topic == topic })
}

func (p *Publisher) filter(keep func(PublishedMessage) bool) []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedMessage
	for _, m := range p.messages {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
