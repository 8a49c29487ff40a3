package mqtt311

import (
	"crypto/tls"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestDefaultOptions(t *testing.T) {
	options := defaultOptions()

	assert.Equal(t, uint16(60), options.keepAlive)
	assert.True(t, options.cleanSession)
	assert.Equal(t, 10*time.Second, options.connectTimeout)
	assert.Equal(t, uint32(maxVarint), options.maxPacketSize)
	assert.Equal(t, 60, options.queueSize)
	assert.IsType(t, &NoOpLogger{}, options.logger)
	assert.Nil(t, options.publishLimiter)
}

func TestApplyOptionsGeneratesClientID(t *testing.T) {
	options := applyOptions()

	require.NotEmpty(t, options.clientID)
	assert.True(t, strings.HasPrefix(options.clientID, "mqtt311-"))

	// Two clients must not collide.
	other := applyOptions()
	assert.NotEqual(t, options.clientID, other.clientID)
}

func TestApplyOptions(t *testing.T) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS13}
	dialer := &TCPDialer{}
	proxy := &ProxyConfig{URL: "socks5://proxy:1080"}
	logger := NewStdLogger(nil, LogLevelError)
	onMessage := func(string, []byte) {}
	onEvent := func(*Client, error) {}

	options := applyOptions(
		WithServers("tcp://a:1883", "tcp://b:1883"),
		WithClientID("custom-id"),
		WithCredentials("user", []byte("pass")),
		WithKeepAlive(30),
		WithCleanSession(false),
		WithWill("will/topic", []byte("gone"), QoS2, true),
		WithConnectTimeout(3*time.Second),
		WithTLSConfig(tlsConfig),
		WithMessageHandler(onMessage),
		WithEventHandler(onEvent),
		WithMaxPacketSize(4096),
		WithQueueSize(16),
		WithPublishRateLimit(rate.Limit(100), 10),
		WithLogger(logger),
		WithDialer(dialer),
		WithProxy(proxy),
	)

	assert.Equal(t, []string{"tcp://a:1883", "tcp://b:1883"}, options.servers)
	assert.Equal(t, "custom-id", options.clientID)
	assert.Equal(t, "user", options.username)
	assert.Equal(t, []byte("pass"), options.password)
	assert.True(t, options.hasPassword)
	assert.Equal(t, uint16(30), options.keepAlive)
	assert.False(t, options.cleanSession)
	assert.Equal(t, "will/topic", options.willTopic)
	assert.Equal(t, []byte("gone"), options.willPayload)
	assert.Equal(t, QoS2, options.willQoS)
	assert.True(t, options.willRetain)
	assert.Equal(t, 3*time.Second, options.connectTimeout)
	assert.Same(t, tlsConfig, options.tlsConfig)
	assert.NotNil(t, options.onMessage)
	assert.NotNil(t, options.onEvent)
	assert.Equal(t, uint32(4096), options.maxPacketSize)
	assert.Equal(t, 16, options.queueSize)
	assert.NotNil(t, options.publishLimiter)
	assert.Same(t, logger, options.logger)
	assert.Same(t, dialer, options.dialer)
	assert.Same(t, proxy, options.proxy)
}

func TestWithQueueSizeIgnoresNonPositive(t *testing.T) {
	options := applyOptions(WithQueueSize(0))
	assert.Equal(t, 60, options.queueSize)

	options = applyOptions(WithQueueSize(-5))
	assert.Equal(t, 60, options.queueSize)
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	options := applyOptions(WithLogger(nil))
	assert.NotNil(t, options.logger)
}
