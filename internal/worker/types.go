package worker

import (
	"expertdir/apps/recommender/internal/rpc"
)

// RequestEnvelope carries an RPC request over NSQ. Replies go to ReplyTopic
// when it is set.
type RequestEnvelope struct {
	ID            string      `json:"id"`
	ReplyTopic    string      `json:"reply_topic,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Request       rpc.Request `json:"request"`
}

type ReplyEnvelope struct {
	ID            string       `json:"id"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Response      rpc.Response `json:"response"`
}

type Publisher interface {
	Publish(topic string, body []byte) error
}
