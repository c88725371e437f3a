package config

// QueueDriver selects the delay-queue backend.
type QueueDriver int

const (
	Redis QueueDriver = iota + 1
	RabbitMQ
)

// String converts the QueueDriver enum to a human-readable string.
func (d QueueDriver) String() string {
	switch d {
	case Redis:
		return "redis"
	case RabbitMQ:
		return "rabbitmq"
	}
	return "unknown"
}

// ParseQueueDriver maps a driver name to its enum value, defaulting to Redis
// for unrecognized input.
func ParseQueueDriver(name string) QueueDriver {
	switch name {
	case "rabbitmq":
		return RabbitMQ
	default:
		return Redis
	}
}
