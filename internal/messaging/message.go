// Package messaging implements C2 (the Message envelope) and C3 (the broker
// Client and the consuming Subscriber) of the mrcs-control specification.
package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// Origin is an opaque correlation identifier. It is generated fresh the
// first time a Message is constructed for publication and must be carried
// unchanged through any echo or forward of that message. It rides the wire
// as the AMQP message's CorrelationId property.
type Origin string

// NewOrigin generates a fresh Origin.
func NewOrigin() Origin {
	return Origin(uuid.NewString())
}

// Message is the unit of exchange between nodes: a routing key, a JSON
// payload, and the origin it was first published under.
type Message struct {
	RoutingKey equipment.PublicationRoutingKey
	Payload    json.RawMessage
	Origin     Origin
}

// New constructs a Message for first publication: v is marshaled to JSON
// and a fresh Origin is minted.
func New(rk equipment.PublicationRoutingKey, v interface{}) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("messaging: marshal payload: %w", err)
	}
	return Message{RoutingKey: rk, Payload: payload, Origin: NewOrigin()}, nil
}

// Forward builds a Message that re-publishes an existing payload under a
// (possibly different) routing key while preserving the inbound Origin.
// Used when a node echoes or relays a message it received rather than
// authoring a new one.
func Forward(rk equipment.PublicationRoutingKey, payload json.RawMessage, origin Origin) Message {
	return Message{RoutingKey: rk, Payload: payload, Origin: origin}
}

// ConstructFromCallback rebuilds a Message from broker delivery fields: the
// wire routing key, the raw body, and the CorrelationId property. It is the
// receive-side counterpart of New/Forward.
func ConstructFromCallback(wireKey string, body []byte, origin Origin) (Message, error) {
	rk, err := equipment.ParsePublicationRoutingKey(wireKey)
	if err != nil {
		return Message{}, err
	}
	if !json.Valid(body) {
		return Message{}, fmt.Errorf("%w: routing key %q", mrcserr.ErrMalformedPayload, wireKey)
	}
	return Message{RoutingKey: rk, Payload: json.RawMessage(body), Origin: origin}, nil
}

// Unmarshal decodes the payload into v.
func (m Message) Unmarshal(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", mrcserr.ErrMalformedPayload, err)
	}
	return nil
}
