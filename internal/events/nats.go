package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"dm-service/internal/logging"
)

// SubjectPrefix namespaces every event subject: dm.events.<name>.
const SubjectPrefix = "dm.events"

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultNATSConfig returns sensible defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "dm-service",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// wireEvent is the NATS encoding of Event. The payload stays raw so each
// instance forwards the exact bytes the publisher produced.
type wireEvent struct {
	Name    string          `json:"name"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NATSBus fans events out through NATS so every service instance delivers to
// the live connections it owns. Local handlers only run when the message
// comes back from the server. All event subjects share one wildcard
// subscription, so events are dispatched on a single goroutine in the order
// the server received them.
type NATSBus struct {
	conn  *nats.Conn
	local *LocalBus
	log   logging.Logger
}

// NewNATSBus connects to NATS and subscribes to every event subject.
func NewNATSBus(cfg NATSConfig, log logging.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn(context.Background(), "nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(context.Background(), "nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	b := &NATSBus{
		conn:  nc,
		local: NewLocalBus(),
		log:   log,
	}
	if _, err := nc.Subscribe(SubjectPrefix+".>", b.onMessage); err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats flush: %w", err)
	}
	log.Info(context.Background(), "nats connected", "url", nc.ConnectedUrl())

	return b, nil
}

// Subscribe registers handler for events called name.
func (b *NATSBus) Subscribe(name string, handler Handler) {
	b.local.Subscribe(name, handler)
}

// Publish sends ev to every instance, this one included.
func (b *NATSBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	data, err := json.Marshal(wireEvent{Name: ev.Name, Target: ev.Target, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.conn.Publish(subjectFor(ev.Name), data)
}

func (b *NATSBus) onMessage(msg *nats.Msg) {
	var wire wireEvent
	if err := json.Unmarshal(msg.Data, &wire); err != nil {
		b.log.Warn(context.Background(), "dropping malformed event", "subject", msg.Subject, "err", err)
		return
	}
	if wire.Name == "" {
		wire.Name = strings.TrimPrefix(msg.Subject, SubjectPrefix+".")
	}
	b.local.dispatch(context.Background(), Event{Name: wire.Name, Target: wire.Target, Payload: wire.Payload})
}

// Close delivers what is already buffered, then closes the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}

func subjectFor(name string) string {
	return SubjectPrefix + "." + name
}
