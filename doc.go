// Package mqtt311 implements an MQTT 3.1.1 client.
//
// The package provides the protocol engine only: packet framing and
// decoding, the concurrent read/write/keep-alive loops sharing a single
// connection, and the packet-identifier correlation that turns the
// asynchronous byte stream into synchronous-looking calls.
//
// A minimal session:
//
//	client, err := mqtt311.Dial(
//		mqtt311.WithServers("tcp://broker.example:1883"),
//		mqtt311.WithMessageHandler(func(topic string, payload []byte) {
//			log.Printf("%s: %s", topic, payload)
//		}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	if err := client.Subscribe(context.Background(), "sensors/#", mqtt311.QoS1); err != nil {
//		log.Fatal(err)
//	}
//	if err := client.Publish(context.Background(), mqtt311.NewMessage("sensors/a", mqtt311.QoS1, false, []byte("42"))); err != nil {
//		log.Fatal(err)
//	}
//
// Publish, Subscribe and Unsubscribe block until the matching
// acknowledgment arrives; the Async variants return a Token for callers
// that want to wait on their own terms. Session state is not persisted
// across connections and the client does not reconnect automatically.
package mqtt311
