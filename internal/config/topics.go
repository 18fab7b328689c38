package config

const (
	// TopicRPCRequest is the NSQ topic the dispatcher consumes requests from.
	TopicRPCRequest = "recommender.request"

	// ChannelRecommender is the consumer channel shared by recommender instances.
	ChannelRecommender = "recommender"

	// TopicRPCReplyPrefix prefixes the per-caller reply topics. Callers append
	// their own id and the #ephemeral suffix.
	TopicRPCReplyPrefix = "recommender.reply."

	// ChannelReply is the channel callers use on their reply topic.
	ChannelReply = "caller#ephemeral"
)
