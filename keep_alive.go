package mqtt311

import "time"

// keepAliveLoop is the keep-alive watchdog, started by the CONNACK
// handler when a positive keep-alive interval was negotiated. Each cycle
// it sends a PINGREQ, sleeps for the interval and verifies that the
// PINGRESP handler cleared the pong-pending flag. A missed PINGRESP
// forces disconnect exactly once.
func (c *Client) keepAliveLoop() {
	interval := time.Duration(c.options.keepAlive) * time.Second

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		c.pongPending.Store(true)

		if err := c.enqueue(&PingreqPacket{}); err != nil {
			// Connection is shutting down; exit quietly.
			return
		}

		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}

		if c.pongPending.Load() {
			c.logger.Error("no PINGRESP within keep-alive interval", LogFields{
				"interval": interval,
			})
			c.teardown(ErrKeepAliveTimeout)
			return
		}

		timer.Reset(interval)
	}
}
