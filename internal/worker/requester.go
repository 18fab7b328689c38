package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"expertdir/apps/recommender/internal/config"
	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
)

// Requester is the caller side of the NSQ transport. Each requester owns an
// ephemeral reply topic and matches replies to pending calls by id.
type Requester struct {
	pub        Publisher
	replyTopic string

	mu      sync.Mutex
	pending map[string]chan rpc.Response
}

func NewRequester(pub Publisher) *Requester {
	return &Requester{
		pub:        pub,
		replyTopic: config.TopicRPCReplyPrefix + uuid.New().String() + "#ephemeral",
		pending:    make(map[string]chan rpc.Response),
	}
}

func (r *Requester) ReplyTopic() string {
	return r.replyTopic
}

// Call publishes req and waits for the matching reply or for ctx.
func (r *Requester) Call(ctx context.Context, req rpc.Request) (rpc.Response, error) {
	ctx, correlationID := middleware.EnsureCorrelationID(ctx)
	id := uuid.New().String()

	body, err := json.Marshal(RequestEnvelope{
		ID:            id,
		ReplyTopic:    r.replyTopic,
		CorrelationID: correlationID,
		Request:       req,
	})
	if err != nil {
		return rpc.Response{}, err
	}

	reply := make(chan rpc.Response, 1)
	r.mu.Lock()
	r.pending[id] = reply
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := r.pub.Publish(config.TopicRPCRequest, body); err != nil {
		return rpc.Response{}, fmt.Errorf("publishing request: %w", err)
	}
	slog.DebugContext(ctx, "request published", "id", id, "method", req.Method)

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return rpc.Response{}, ctx.Err()
	}
}

// HandleMessage completes the pending call a reply belongs to. Replies
// nobody waits for are dropped.
func (r *Requester) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var env ReplyEnvelope
	if err := json.Unmarshal(m.Body, &env); err != nil {
		slog.Error("poison pill: invalid reply json", "error", err)
		return nil
	}

	r.mu.Lock()
	reply, ok := r.pending[env.ID]
	r.mu.Unlock()
	if !ok {
		slog.Debug("dropping reply without pending call", "id", env.ID)
		return nil
	}

	select {
	case reply <- env.Response:
	default:
	}
	return nil
}

// DialRequester connects a requester to nsqd: a producer for requests and a
// consumer on its reply topic. The returned func releases both.
func DialRequester(nsqdAddr string) (*Requester, func(), error) {
	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(nsqdAddr, nsqCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("nsq producer error: %w", err)
	}

	r := NewRequester(producer)
	consumer, err := nsq.NewConsumer(r.ReplyTopic(), config.ChannelReply, nsqCfg)
	if err != nil {
		producer.Stop()
		return nil, nil, fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddHandler(r)

	if err := consumer.ConnectToNSQD(nsqdAddr); err != nil {
		producer.Stop()
		return nil, nil, fmt.Errorf("connecting to nsqd: %w", err)
	}

	release := func() {
		consumer.Stop()
		<-consumer.StopChan
		producer.Stop()
	}
	return r, release, nil
}
