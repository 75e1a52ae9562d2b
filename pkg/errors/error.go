package errors

// ErrorCode represents a specific error code in the system.
type ErrorCode string

const (
	// GeneralInternalServerError represents a generic internal server error.
	GeneralInternalServerError ErrorCode = "general_internal_server_error"
	// GeneralBadRequestError represents a generic bad request error.
	GeneralBadRequestError ErrorCode = "general_bad_request_error"
	// GeneralNotFoundError represents a generic not found error.
	GeneralNotFoundError ErrorCode = "general_not_found_error"
	// GeneralRepositoryError represents a generic repository error.
	GeneralRepositoryError ErrorCode = "general_repository_error"

	// TickValidationError represents a malformed tick rejected before it
	// enters the distribution bus. Validation failures are never retried.
	TickValidationError ErrorCode = "tick_validation_error"
	// TickConflictError represents a tick whose (symbol, time) key is
	// already persisted with a different price. The first write is
	// authoritative; the conflicting tick is logged and dropped.
	TickConflictError ErrorCode = "tick_conflict_error"
	// StorageUnavailableError represents a persistence write failure after
	// the bounded retry budget is exhausted.
	StorageUnavailableError ErrorCode = "storage_unavailable_error"
	// SlowConsumerDrop marks a buffered item discarded to protect liveness
	// of a bounded queue. It is surfaced via counters, never to publishers.
	SlowConsumerDrop ErrorCode = "slow_consumer_drop"
	// SubscriptionClosedError represents a push against a subscription
	// that has already been removed from the registry.
	SubscriptionClosedError ErrorCode = "subscription_closed_error"

	// RedisConfigError represents an invalid or nil Redis configuration.
	RedisConfigError ErrorCode = "redis_config_error"
	// RedisConnectionError represents an error when connecting to Redis.
	RedisConnectionError ErrorCode = "redis_connection_error"
	// RedisSubscribeError represents an error when subscribing to channels in Redis.
	RedisSubscribeError ErrorCode = "redis_subscribe_error"
	// RedisPublishError represents an error when publishing messages to channels in Redis.
	RedisPublishError ErrorCode = "redis_publish_error"

	// KafkaReadError represents an error when reading messages from Kafka.
	KafkaReadError ErrorCode = "kafka_read_error"
)

// Severity represents the severity level of an error.
type Severity string

const (
	// SeverityCritical indicates a critical error that requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a high severity error that should be addressed promptly.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a medium severity error.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a low severity error.
	SeverityLow Severity = "low"
)
