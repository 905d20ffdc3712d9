package equipment

import (
	"fmt"
	"strings"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// RoutingKey is satisfied by both PublicationRoutingKey and
// SubscriptionRoutingKey; both render to the six-token wire form
// "sType.sSector.sSerial.tType.tSector.tSerial" that the topic exchange
// matches against.
type RoutingKey interface {
	Format() string
}

// PublicationRoutingKey is used on the publish side: a concrete source and
// a (possibly wildcarded) target, which may describe a broadcast range.
type PublicationRoutingKey struct {
	Source Id
	Target Filter
}

func (k PublicationRoutingKey) Format() string {
	return k.Source.Format() + "." + k.Target.Format()
}

func (k PublicationRoutingKey) String() string { return k.Format() }

// ParsePublicationRoutingKey parses the six-token wire form into a
// PublicationRoutingKey. The source triple is parsed with ParseId: its type
// and serial must not be wildcards, and a "*" sector means no sector.
func ParsePublicationRoutingKey(s string) (PublicationRoutingKey, error) {
	src, tgt, err := splitSix(s)
	if err != nil {
		return PublicationRoutingKey{}, err
	}

	source, err := ParseId(src)
	if err != nil {
		return PublicationRoutingKey{}, err
	}

	target, err := ParseFilter(tgt)
	if err != nil {
		return PublicationRoutingKey{}, err
	}

	return PublicationRoutingKey{Source: source, Target: target}, nil
}

// SubscriptionRoutingKey is used when binding a queue: both source and
// target may be wildcarded filters.
type SubscriptionRoutingKey struct {
	Source Filter
	Target Filter
}

func (k SubscriptionRoutingKey) Format() string {
	return k.Source.Format() + "." + k.Target.Format()
}

func (k SubscriptionRoutingKey) String() string { return k.Format() }

// ParseSubscriptionRoutingKey parses the six-token wire form into a
// SubscriptionRoutingKey.
func ParseSubscriptionRoutingKey(s string) (SubscriptionRoutingKey, error) {
	src, tgt, err := splitSix(s)
	if err != nil {
		return SubscriptionRoutingKey{}, err
	}

	source, err := ParseFilter(src)
	if err != nil {
		return SubscriptionRoutingKey{}, err
	}

	target, err := ParseFilter(tgt)
	if err != nil {
		return SubscriptionRoutingKey{}, err
	}

	return SubscriptionRoutingKey{Source: source, Target: target}, nil
}

func splitSix(s string) (source, target string, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return "", "", fmt.Errorf("%w: %q: expected 6 dotted tokens", mrcserr.ErrMalformedKey, s)
	}
	return strings.Join(parts[:3], "."), strings.Join(parts[3:], "."), nil
}
