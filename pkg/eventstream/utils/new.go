// Package eventstreamutils builds event publishers from provider settings.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/vellum/pkg/eventstream"
	"github.com/papercomputeco/vellum/pkg/eventstream/kafka"
	"github.com/papercomputeco/vellum/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is "" or "none" for no events, or "kafka".
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "none", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported event stream provider: %s", o.ProviderType)
	}
}
