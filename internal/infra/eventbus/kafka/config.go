package kafka

// EventBusConfig contains settings for connecting to and interacting with Kafka brokers.
// It defines the topics, consumer group, and client identifiers needed for message routing.
type EventBusConfig struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string

	// AggregateResultsTopic is the topic for aggregate query outcomes,
	// both completions and exhausted failures.
	AggregateResultsTopic string
	// LiveValuesTopic is the topic for instantaneous property value updates.
	LiveValuesTopic string

	// GroupID identifies the consumer group for this broker instance.
	GroupID string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string

	// ServiceType identifies the type of service (e.g., "relay", "view")
	ServiceType string
}
