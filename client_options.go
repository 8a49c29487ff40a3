package mqtt311

import (
	"crypto/tls"
	"time"

	"github.com/rs/xid"
	"golang.org/x/time/rate"
)

// clientOptions holds configuration for a Client.
type clientOptions struct {
	// Connection settings
	clientID     string
	username     string
	password     []byte
	hasPassword  bool
	keepAlive    uint16
	cleanSession bool

	// TLS configuration
	tlsConfig *tls.Config

	// Timeouts
	connectTimeout time.Duration

	// Will message
	willTopic   string
	willPayload []byte
	willRetain  bool
	willQoS     byte

	// Callbacks
	onMessage MessageHandler
	onEvent   EventHandler

	// Limits
	maxPacketSize uint32
	queueSize     int

	// Optional outbound publish rate limiter
	publishLimiter *rate.Limiter

	// Logging
	logger Logger

	// Transport
	servers []string
	dialer  Dialer
	proxy   *ProxyConfig
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() *clientOptions {
	return &clientOptions{
		keepAlive:      60,
		cleanSession:   true,
		connectTimeout: 10 * time.Second,
		maxPacketSize:  maxVarint,
		queueSize:      60,
		logger:         NewNoOpLogger(),
	}
}

// Option configures a Client.
type Option func(*clientOptions)

// applyOptions applies the options to a fresh default configuration.
func applyOptions(opts ...Option) *clientOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.clientID == "" {
		options.clientID = generateClientID()
	}

	return options
}

// generateClientID generates a random client identifier.
func generateClientID() string {
	return "mqtt311-" + xid.New().String()
}

// WithServers sets the broker addresses to try in order, in URI format:
// tcp://host:1883, ssl://host:8883, ws://host/mqtt, quic://host:8883,
// unix:///path/to/socket.
func WithServers(servers ...string) Option {
	return func(o *clientOptions) {
		o.servers = servers
	}
}

// WithClientID sets the client identifier. A random one is generated
// when unset.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password carried in CONNECT.
// They are passed through opaquely.
func WithCredentials(username string, password []byte) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = password
		o.hasPassword = password != nil
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. Zero disables
// the keep-alive watchdog.
func WithKeepAlive(seconds uint16) Option {
	return func(o *clientOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession controls the clean-session flag in CONNECT.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithWill sets the will message registered with the server at connect.
func WithWill(topic string, payload []byte, qos byte, retain bool) Option {
	return func(o *clientOptions) {
		o.willTopic = topic
		o.willPayload = payload
		o.willQoS = qos
		o.willRetain = retain
	}
}

// WithConnectTimeout bounds the CONNECT/CONNACK handshake.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.connectTimeout = timeout
	}
}

// WithTLSConfig sets the TLS configuration for ssl/tls/mqtts/quic schemes.
func WithTLSConfig(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsConfig = config
	}
}

// WithMessageHandler registers the callback invoked for every inbound
// application message. The callback runs on its own goroutine and never
// blocks the read loop.
func WithMessageHandler(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.onMessage = handler
	}
}

// WithEventHandler registers the callback for lifecycle events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *clientOptions) {
		o.onEvent = handler
	}
}

// WithMaxPacketSize limits the size of inbound packet bodies.
func WithMaxPacketSize(size uint32) Option {
	return func(o *clientOptions) {
		o.maxPacketSize = size
	}
}

// WithQueueSize sets the capacity of the outbound packet queue. Callers
// enqueueing while the queue is full block until the write loop drains it.
func WithQueueSize(size int) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

// WithPublishRateLimit throttles outbound publishes to r events per
// second with the given burst.
func WithPublishRateLimit(r rate.Limit, burst int) Option {
	return func(o *clientOptions) {
		o.publishLimiter = rate.NewLimiter(r, burst)
	}
}

// WithLogger sets the logger. Logging is disabled by default.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialer overrides the transport dialer for all schemes.
func WithDialer(dialer Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = dialer
	}
}

// WithProxy routes TCP-based transports through an HTTP CONNECT or
// SOCKS5 proxy.
func WithProxy(config *ProxyConfig) Option {
	return func(o *clientOptions) {
		o.proxy = config
	}
}
