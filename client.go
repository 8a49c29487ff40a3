package mqtt311

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
)

// MessageHandler handles incoming application messages. It is invoked on
// its own goroutine per message; the read loop never waits for it.
type MessageHandler func(topic string, payload []byte)

// Client is an MQTT 3.1.1 client. Three loops share the connection: the
// read loop parses inbound frames and dispatches them to per-command
// handlers, the write loop is the sole writer draining the outbound
// queue, and the keep-alive watchdog pings the server. They communicate
// only through the pending table, the outbound queue and the pong flag.
type Client struct {
	conn    net.Conn
	options *clientOptions
	logger  Logger

	// Request/response correlation
	pending *pendingTable

	// Outbound queue. qMu guards closing against concurrent enqueues.
	outbound    chan Packet
	qMu         sync.RWMutex
	queueClosed bool

	// Inbound dispatch, built once at connect
	handlers map[PacketType]func(Packet)

	// Set when a PINGREQ is in flight and its PINGRESP has not arrived
	pongPending atomic.Bool

	// Connection state
	connected atomic.Bool
	closed    atomic.Bool

	// Lifecycle control
	ctx       context.Context
	cancel    context.CancelFunc
	readDone  chan struct{}
	writeDone chan struct{}
}

// Dial connects to an MQTT broker and returns a client.
// Use WithServers() to configure broker addresses.
func Dial(opts ...Option) (*Client, error) {
	return DialContext(context.Background(), opts...)
}

// DialContext connects to an MQTT broker. The context bounds transport
// establishment and the CONNECT/CONNACK handshake only; the returned
// client lives until Disconnect or a connection-fatal error.
func DialContext(ctx context.Context, opts ...Option) (*Client, error) {
	options := applyOptions(opts...)

	if len(options.servers) == 0 {
		return nil, errors.New("no servers configured: use WithServers()")
	}

	c := &Client{
		options:   options,
		logger:    options.logger,
		pending:   newPendingTable(),
		outbound:  make(chan Packet, options.queueSize),
		readDone:  make(chan struct{}),
		writeDone: make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.handlers = c.buildHandlers()

	conn, err := c.dialServers(ctx)
	if err != nil {
		c.cancel()
		return nil, err
	}
	c.conn = conn

	if err := c.handshake(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// handshake starts the engines, sends CONNECT and blocks until the
// CONNACK handler resolves the reserved id-0 slot.
func (c *Client) handshake(ctx context.Context) error {
	tok := &ConnectToken{token: newToken()}
	if err := c.pending.reserve(connectPacketID, tok); err != nil {
		c.conn.Close()
		c.cancel()
		return err
	}

	go c.writeLoop()
	go c.readLoop()

	if err := c.enqueue(c.buildConnectPacket()); err != nil {
		c.teardown(err)
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.options.connectTimeout)
	defer cancel()

	if err := tok.Wait(connectCtx); err != nil {
		c.teardown(err)
		return err
	}

	c.connected.Store(true)
	c.logger.Info("connected", LogFields{LogFieldClientID: c.options.clientID})
	c.emit(ErrConnected)

	return nil
}

// buildConnectPacket assembles the CONNECT packet from the options.
func (c *Client) buildConnectPacket() *ConnectPacket {
	pkt := &ConnectPacket{
		ClientID:     c.options.clientID,
		CleanSession: c.options.cleanSession,
		KeepAlive:    c.options.keepAlive,
		Username:     c.options.username,
		Password:     c.options.password,
		HasPassword:  c.options.hasPassword,
	}

	if c.options.willTopic != "" {
		pkt.WillFlag = true
		pkt.WillTopic = c.options.willTopic
		pkt.WillMessage = c.options.willPayload
		pkt.WillQoS = c.options.willQoS
		pkt.WillRetain = c.options.willRetain
	}

	return pkt
}

// dialServers tries each configured server in order and returns the
// first connection that succeeds.
func (c *Client) dialServers(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for _, addr := range c.options.servers {
		conn, err := c.dial(ctx, addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		c.logger.Warn("dial failed", LogFields{"server": addr, LogFieldError: err})
	}
	return nil, fmt.Errorf("all servers failed: %w", lastErr)
}

// dial creates the network connection for the address scheme.
func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.options.dialer != nil {
		return c.options.dialer.Dial(ctx, addr)
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "tcp", "mqtt":
			host = net.JoinHostPort(u.Hostname(), "1883")
		case "ssl", "tls", "mqtts":
			host = net.JoinHostPort(u.Hostname(), "8883")
		case "ws":
			host = net.JoinHostPort(u.Hostname(), "80")
		case "wss":
			host = net.JoinHostPort(u.Hostname(), "443")
		case "quic":
			host = net.JoinHostPort(u.Hostname(), "8883")
		}
	}

	var proxyDialer *ProxyDialer
	if c.options.proxy != nil {
		proxyDialer, err = NewProxyDialer(c.options.proxy.URL, c.options.proxy.Username, c.options.proxy.Password)
		if err != nil {
			return nil, fmt.Errorf("proxy configuration error: %w", err)
		}
	}

	switch u.Scheme {
	case "tcp", "mqtt":
		if proxyDialer != nil {
			return proxyDialer.DialContext(ctx, "tcp", host)
		}
		d := &TCPDialer{}
		return d.Dial(ctx, host)

	case "ssl", "tls", "mqtts":
		tlsConfig := c.options.tlsConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		if proxyDialer != nil {
			conn, err := proxyDialer.DialContext(ctx, "tcp", host)
			if err != nil {
				return nil, err
			}
			tlsConn := tls.Client(conn, tlsConfig)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("TLS handshake failed: %w", err)
			}
			return tlsConn, nil
		}
		d := &TLSDialer{Config: tlsConfig}
		return d.Dial(ctx, host)

	case "ws", "wss":
		wsDialer := NewWSDialer()
		if c.options.tlsConfig != nil && wsDialer.Dialer != nil {
			wsDialer.Dialer.TLSClientConfig = c.options.tlsConfig
		}
		return wsDialer.Dial(ctx, addr)

	case "unix":
		socketPath := u.Path
		if socketPath == "" {
			socketPath = u.Host + u.Path
		}
		unixDialer := NewUnixDialer()
		return unixDialer.Dial(ctx, socketPath)

	case "quic":
		quicDialer := NewQUICDialer(c.options.tlsConfig)
		return quicDialer.Dial(ctx, host)

	default:
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && !c.closed.Load()
}

// ClientID returns the client identifier.
func (c *Client) ClientID() string {
	return c.options.clientID
}

// Publish sends a message and blocks until it is acknowledged (QoS 1/2)
// or handed to the write loop (QoS 0). The context bounds the wait.
func (c *Client) Publish(ctx context.Context, msg *Message) error {
	return c.PublishAsync(msg).Wait(ctx)
}

// PublishAsync sends a message and returns a token resolved by the
// matching PUBACK (QoS 1) or PUBCOMP (QoS 2). QoS 0 publishes have no
// acknowledgment and return an already-completed token.
func (c *Client) PublishAsync(msg *Message) *PublishToken {
	tok := &PublishToken{token: newToken()}

	if c.closed.Load() {
		tok.complete(ErrClientClosed)
		return tok
	}
	if !c.connected.Load() {
		tok.complete(ErrNotConnected)
		return tok
	}
	if !validQoS(msg.QoS) {
		tok.complete(ErrInvalidQoS)
		return tok
	}

	if c.options.publishLimiter != nil {
		if err := c.options.publishLimiter.Wait(c.ctx); err != nil {
			tok.complete(ErrConnectionClosed)
			return tok
		}
	}

	pkt := &PublishPacket{}
	pkt.FromMessage(msg)

	if msg.QoS == QoS0 {
		if err := c.enqueue(pkt); err != nil {
			tok.complete(err)
			return tok
		}
		tok.complete(nil)
		return tok
	}

	id, err := c.pending.allocate(tok)
	if err != nil {
		tok.complete(err)
		return tok
	}
	pkt.PacketID = id

	if err := c.enqueue(pkt); err != nil {
		if t, ok := c.pending.take(id); ok {
			t.complete(err)
		} else {
			tok.complete(err)
		}
	}

	return tok
}

// Subscribe subscribes to a single topic filter and blocks until the
// SUBACK arrives. A 0x80 return code is reported as
// ErrSubscriptionRejected.
func (c *Client) Subscribe(ctx context.Context, filter string, qos byte) error {
	tok := c.SubscribeAsync(Subscription{TopicFilter: filter, QoS: qos})
	if err := tok.Wait(ctx); err != nil {
		return err
	}
	if len(tok.ReturnCodes) > 0 && tok.ReturnCodes[0] == SubackFailure {
		return ErrSubscriptionRejected
	}
	return nil
}

// SubscribeAsync sends a SUBSCRIBE for the given filters and returns a
// token resolved by the SUBACK. The granted QoS list is available on
// the token once it completes, in request order.
func (c *Client) SubscribeAsync(subs ...Subscription) *SubscribeToken {
	tok := &SubscribeToken{token: newToken()}

	if c.closed.Load() {
		tok.complete(ErrClientClosed)
		return tok
	}
	if !c.connected.Load() {
		tok.complete(ErrNotConnected)
		return tok
	}
	if len(subs) == 0 {
		tok.complete(ErrNoSubscriptions)
		return tok
	}

	id, err := c.pending.allocate(tok)
	if err != nil {
		tok.complete(err)
		return tok
	}

	pkt := &SubscribePacket{
		PacketID:      id,
		Subscriptions: subs,
	}

	if err := c.enqueue(pkt); err != nil {
		if t, ok := c.pending.take(id); ok {
			t.complete(err)
		} else {
			tok.complete(err)
		}
	}

	return tok
}

// Unsubscribe removes subscriptions and blocks until the UNSUBACK
// arrives.
func (c *Client) Unsubscribe(ctx context.Context, filters ...string) error {
	return c.UnsubscribeAsync(filters...).Wait(ctx)
}

// UnsubscribeAsync sends an UNSUBSCRIBE for the given filters and
// returns a token resolved by the UNSUBACK.
func (c *Client) UnsubscribeAsync(filters ...string) *UnsubscribeToken {
	tok := &UnsubscribeToken{token: newToken()}

	if c.closed.Load() {
		tok.complete(ErrClientClosed)
		return tok
	}
	if !c.connected.Load() {
		tok.complete(ErrNotConnected)
		return tok
	}
	if len(filters) == 0 {
		tok.complete(ErrNoTopicFilters)
		return tok
	}

	id, err := c.pending.allocate(tok)
	if err != nil {
		tok.complete(err)
		return tok
	}

	pkt := &UnsubscribePacket{
		PacketID:     id,
		TopicFilters: filters,
	}

	if err := c.enqueue(pkt); err != nil {
		if t, ok := c.pending.take(id); ok {
			t.complete(err)
		} else {
			tok.complete(err)
		}
	}

	return tok
}

// Disconnect sends DISCONNECT, flushes the outbound queue, closes the
// socket and resolves every pending token with ErrConnectionClosed.
// It is safe to call more than once.
func (c *Client) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)

	// Best effort: the packet is dropped if the queue is already full
	// and shutting down.
	_ = c.enqueue(&DisconnectPacket{})

	c.closeQueue()
	<-c.writeDone

	c.pending.failAll(ErrConnectionClosed)
	c.logger.Info("disconnected", LogFields{LogFieldClientID: c.options.clientID})
	c.emit(ErrDisconnected)

	return nil
}

// teardown force-closes the connection after a connection-fatal error.
// Exactly one teardown wins; later calls are no-ops.
func (c *Client) teardown(cause error) {
	if c.closed.Swap(true) {
		return
	}
	c.connected.Store(false)

	c.closeQueue()
	c.pending.failAll(ErrConnectionClosed)

	if cause == nil || errors.Is(cause, io.EOF) {
		c.logger.Info("connection closed by server", nil)
		c.emit(ErrDisconnected)
		return
	}

	c.logger.Error("connection lost", LogFields{LogFieldError: cause})
	c.emit(NewConnectionLostError(cause))
}

// enqueue submits a packet to the outbound queue, blocking for
// backpressure while the queue is full. It fails with
// ErrConnectionClosed once the queue has been closed.
func (c *Client) enqueue(pkt Packet) error {
	c.qMu.RLock()
	defer c.qMu.RUnlock()

	if c.queueClosed {
		return ErrConnectionClosed
	}

	select {
	case c.outbound <- pkt:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// closeQueue closes the outbound queue, signalling the write loop to
// drain what is left, close the socket and exit. The context is
// cancelled first so enqueuers blocked on a full queue give up instead
// of racing the close.
func (c *Client) closeQueue() {
	c.cancel()

	c.qMu.Lock()
	defer c.qMu.Unlock()

	if !c.queueClosed {
		c.queueClosed = true
		close(c.outbound)
	}
}

// emit sends an event to the event handler.
func (c *Client) emit(event error) {
	if c.options.onEvent != nil {
		c.options.onEvent(c, event)
	}
}

// writeLoop is the write engine: the sole writer to the socket. Packets
// leave in submission order and are never interleaved mid-frame. Queue
// closure ends the loop cleanly after a final drain; any write error is
// fatal to the connection.
func (c *Client) writeLoop() {
	defer close(c.writeDone)
	defer c.conn.Close()

	for pkt := range c.outbound {
		if _, err := WritePacket(c.conn, pkt, 0); err != nil {
			if !c.closed.Load() {
				go c.teardown(err)
			}
			return
		}
	}
}

// readLoop is the read engine: it parses one frame at a time and
// dispatches it by command type. End-of-stream ends the loop as a normal
// close; any other failure is connection-fatal.
func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		pkt, _, err := ReadPacket(c.conn, c.options.maxPacketSize)
		if err != nil {
			if c.closed.Load() {
				return
			}
			go c.teardown(err)
			return
		}

		handler, ok := c.handlers[pkt.Type()]
		if !ok {
			go c.teardown(newProtocolError("unexpected "+pkt.Type().String()+" from server", nil))
			return
		}

		handler(pkt)
	}
}

// buildHandlers returns the fixed dispatch table from command type to
// handler. Only server-to-client packet types are present; anything
// else from the peer is a protocol violation.
func (c *Client) buildHandlers() map[PacketType]func(Packet) {
	return map[PacketType]func(Packet){
		PacketCONNACK:  func(p Packet) { c.handleConnack(p.(*ConnackPacket)) },
		PacketPUBLISH:  func(p Packet) { c.handlePublish(p.(*PublishPacket)) },
		PacketPUBACK:   func(p Packet) { c.resolveAck(p.(*PubackPacket).PacketID, "PUBACK") },
		PacketPUBREC:   func(p Packet) { c.handlePubrec(p.(*PubrecPacket)) },
		PacketPUBREL:   func(p Packet) { c.handlePubrel(p.(*PubrelPacket)) },
		PacketPUBCOMP:  func(p Packet) { c.resolveAck(p.(*PubcompPacket).PacketID, "PUBCOMP") },
		PacketSUBACK:   func(p Packet) { c.handleSuback(p.(*SubackPacket)) },
		PacketUNSUBACK: func(p Packet) { c.resolveAck(p.(*UnsubackPacket).PacketID, "UNSUBACK") },
		PacketPINGRESP: func(p Packet) { c.handlePingresp() },
	}
}

// handleConnack resolves the reserved id-0 slot. Return code 0 carries
// the session-present flag and arms the keep-alive watchdog; codes 1..5
// map to the refusal table; anything else resolves the slot with an
// unknown-return-code error instead of crashing.
func (c *Client) handleConnack(pkt *ConnackPacket) {
	slot, ok := c.pending.take(connectPacketID)
	if !ok {
		c.logger.Warn("unexpected CONNACK", nil)
		return
	}

	tok, ok := slot.(*ConnectToken)
	if !ok {
		c.logger.Warn("CONNACK slot held a foreign token", nil)
		return
	}

	if !pkt.ReturnCode.Valid() {
		tok.complete(newProtocolError(fmt.Sprintf("unknown CONNACK return code 0x%02x", byte(pkt.ReturnCode)), nil))
		return
	}

	if pkt.ReturnCode != ConnectionAccepted {
		tok.complete(NewConnectError(pkt.ReturnCode))
		return
	}

	tok.SessionPresent = pkt.SessionPresent
	tok.complete(nil)

	if c.options.keepAlive > 0 {
		go c.keepAliveLoop()
	}
}

// handlePublish acknowledges an inbound application message per its QoS
// and hands the payload to the message callback on its own goroutine.
func (c *Client) handlePublish(pkt *PublishPacket) {
	switch pkt.QoS {
	case QoS1:
		if err := c.enqueue(&PubackPacket{PacketID: pkt.PacketID}); err != nil {
			return
		}
	case QoS2:
		if err := c.enqueue(&PubrecPacket{PacketID: pkt.PacketID}); err != nil {
			return
		}
	}

	if c.options.onMessage != nil {
		go c.options.onMessage(pkt.Topic, pkt.Payload)
	}
}

// resolveAck resolves the pending token for an id-only acknowledgment.
// A stray or duplicate ack is logged and ignored; it must never kill the
// read loop.
func (c *Client) resolveAck(id uint16, kind string) {
	slot, ok := c.pending.take(id)
	if !ok {
		c.logger.Warn("stray acknowledgment", LogFields{
			LogFieldPacketType: kind,
			LogFieldPacketID:   id,
		})
		return
	}
	slot.complete(nil)
}

// handlePubrec advances the QoS 2 handshake: the client answers PUBREC
// with PUBREL for the same id without caller involvement. The pending
// token stays registered until PUBCOMP arrives.
func (c *Client) handlePubrec(pkt *PubrecPacket) {
	if !c.pending.outstanding(pkt.PacketID) {
		c.logger.Warn("PUBREC for unknown packet ID", LogFields{LogFieldPacketID: pkt.PacketID})
	}

	_ = c.enqueue(&PubrelPacket{PacketID: pkt.PacketID})
}

// handlePubrel completes the receiver side of an inbound QoS 2 flow by
// answering with PUBCOMP.
func (c *Client) handlePubrel(pkt *PubrelPacket) {
	_ = c.enqueue(&PubcompPacket{PacketID: pkt.PacketID})
}

// handleSuback resolves the pending subscribe with the granted-QoS list.
func (c *Client) handleSuback(pkt *SubackPacket) {
	slot, ok := c.pending.take(pkt.PacketID)
	if !ok {
		c.logger.Warn("stray SUBACK", LogFields{LogFieldPacketID: pkt.PacketID})
		return
	}

	tok, ok := slot.(*SubscribeToken)
	if !ok {
		slot.complete(newProtocolError("SUBACK for a non-subscribe request", nil))
		return
	}

	tok.ReturnCodes = pkt.ReturnCodes
	tok.complete(nil)
}

// handlePingresp clears the pong-pending flag. A PINGRESP with no
// PINGREQ in flight is a protocol violation and forces disconnect.
func (c *Client) handlePingresp() {
	if !c.pongPending.CompareAndSwap(true, false) {
		go c.teardown(newProtocolError("unsolicited PINGRESP", nil))
	}
}
