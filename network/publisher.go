package network

import (
	"sync"
)

// Topic names a gossip channel. The transport behind it is opaque to the
// core.
type Topic string

const (
	TopicProposal  Topic = "proposal"
	TopicVote      Topic = "vote"
	TopicHeartbeat Topic = "heartbeat"
)

// Publisher is the contract the core holds against the P2P layer.
type Publisher interface {
	Publish(topic Topic, payload []byte) error
	SendResponse(requestID string, bundle []byte) error
	RequestState(peer string, height uint64) error
}

// Authenticator signs and verifies consensus messages on behalf of the node.
type Authenticator interface {
	Sign(message []byte) []byte
	Verify(message, signature, publicKey []byte) bool
	PublicKey() []byte
}

// Envelope is one published message as observed by the loopback transport.
type Envelope struct {
	Topic   Topic
	Payload []byte
}

// LoopbackPublisher records published messages in memory. It backs tests and
// single-node deployments where no transport is wired.
type LoopbackPublisher struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func NewLoopbackPublisher() *LoopbackPublisher {
	return &LoopbackPublisher{}
}

func (l *LoopbackPublisher) Publish(topic Topic, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.envelopes = append(l.envelopes, Envelope{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

func (l *LoopbackPublisher) SendResponse(requestID string, bundle []byte) error {
	return l.Publish(Topic("response:"+requestID), bundle)
}

func (l *LoopbackPublisher) RequestState(peer string, height uint64) error {
	return nil
}

// Envelopes returns a copy of everything published so far.
func (l *LoopbackPublisher) Envelopes() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Envelope, len(l.envelopes))
	copy(out, l.envelopes)
	return out
}
