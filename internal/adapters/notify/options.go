package notify

import "time"

// Option configures Open.
type Option func(*options)

type options struct {
	kafkaBrokers   []string
	kafkaTopic     string
	redisAddr      string
	redisChannel   string
	natsURL        string
	natsSubject    string
	connectTimeout time.Duration
}

func defaultOptions() options {
	return options{
		kafkaTopic:     "funbet.match",
		redisChannel:   "funbet:match",
		natsSubject:    "funbet.match.updated",
		connectTimeout: 5 * time.Second,
	}
}

// WithKafka sets the brokers and topic used by the kafka driver.
func WithKafka(brokers []string, topic string) Option {
	return func(o *options) {
		o.kafkaBrokers = brokers
		if topic != "" {
			o.kafkaTopic = topic
		}
	}
}

// WithRedis sets the server and pub/sub channel used by the redis driver.
func WithRedis(addr, channel string) Option {
	return func(o *options) {
		o.redisAddr = addr
		if channel != "" {
			o.redisChannel = channel
		}
	}
}

// WithNATS sets the server URL and subject used by the nats driver.
func WithNATS(url, subject string) Option {
	return func(o *options) {
		o.natsURL = url
		if subject != "" {
			o.natsSubject = subject
		}
	}
}

// WithConnectTimeout bounds connection setup.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}
