package worker_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"expertdir/apps/recommender/internal/rpc"
)

type MockCaller struct{ mock.Mock }

func (m *MockCaller) Call(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(rpc.Response), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// recordingPublisher keeps every message and optionally reacts to it.
type recordingPublisher struct {
	mu        sync.Mutex
	messages  map[string][][]byte
	onPublish func(topic string, body []byte)
	err       error
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{messages: make(map[string][][]byte)}
}

func (p *recordingPublisher) Publish(topic string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	p.messages[topic] = append(p.messages[topic], body)
	hook := p.onPublish
	p.mu.Unlock()
	if hook != nil {
		go hook(topic, body)
	}
	return nil
}

func (p *recordingPublisher) bodies(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[topic]
}
