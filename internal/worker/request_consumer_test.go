package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
	"expertdir/apps/recommender/internal/worker"
)

func envelope(t *testing.T, env worker.RequestEnvelope) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return &nsq.Message{Body: body}
}

func TestRequestConsumer_HandleMessage(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	req := rpc.NewRequest(rpc.MethodDelete, "a@x.org")
	c.On("Call", mock.Anything, req).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		assert.Equal(t, "corr-7", middleware.GetCorrelationID(ctx))
	}).Return(rpc.Success(nil), nil)

	pub.On("Publish", "recommender.reply.abc#ephemeral", mock.MatchedBy(func(body []byte) bool {
		var reply worker.ReplyEnvelope
		if err := json.Unmarshal(body, &reply); err != nil {
			return false
		}
		return reply.ID == "req-1" && reply.CorrelationID == "corr-7" && reply.Response.OK()
	})).Return(nil)

	err := consumer.HandleMessage(envelope(t, worker.RequestEnvelope{
		ID:            "req-1",
		ReplyTopic:    "recommender.reply.abc#ephemeral",
		CorrelationID: "corr-7",
		Request:       req,
	}))

	assert.NoError(t, err)
	c.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRequestConsumer_ErrorResponseIsReplied(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	c.On("Call", mock.Anything, mock.Anything).Return(rpc.Failure(errors.New("Method not found: x")), nil)
	pub.On("Publish", "reply", mock.MatchedBy(func(body []byte) bool {
		var reply worker.ReplyEnvelope
		_ = json.Unmarshal(body, &reply)
		return reply.Response.Status == rpc.StatusError && reply.Response.ErrorMessage == "Method not found: x"
	})).Return(nil)

	err := consumer.HandleMessage(envelope(t, worker.RequestEnvelope{ID: "1", ReplyTopic: "reply", Request: rpc.Request{Method: "x"}}))
	assert.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestRequestConsumer_NoReplyTopic(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	c.On("Call", mock.Anything, mock.Anything).Return(rpc.Success(nil), nil)

	err := consumer.HandleMessage(envelope(t, worker.RequestEnvelope{ID: "1", Request: rpc.NewRequest(rpc.MethodDelete, "a@x.org")}))
	assert.NoError(t, err)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRequestConsumer_PoisonPill(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: []byte("invalid json")}))
	assert.NoError(t, consumer.HandleMessage(&nsq.Message{Body: nil}))
	c.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
}

func TestRequestConsumer_NotAvailableRequeues(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	c.On("Call", mock.Anything, mock.Anything).Return(rpc.Response{}, rpc.ErrNotAvailable)

	err := consumer.HandleMessage(envelope(t, worker.RequestEnvelope{ID: "1", ReplyTopic: "reply", Request: rpc.NewRequest(rpc.MethodDelete, "a@x.org")}))
	assert.ErrorIs(t, err, rpc.ErrNotAvailable)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestRequestConsumer_PublishFailureIsNotRetried(t *testing.T) {
	c := new(MockCaller)
	pub := new(MockPublisher)
	consumer := worker.NewRequestConsumer(c, pub)

	c.On("Call", mock.Anything, mock.Anything).Return(rpc.Success(nil), nil).Once()
	pub.On("Publish", "reply", mock.Anything).Return(errors.New("nsqd gone"))

	err := consumer.HandleMessage(envelope(t, worker.RequestEnvelope{ID: "1", ReplyTopic: "reply", Request: rpc.NewRequest(rpc.MethodAdd, "skills", "a@x.org")}))
	assert.NoError(t, err)
	c.AssertNumberOfCalls(t, "Call", 1)
}
