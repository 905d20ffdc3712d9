// Package equipment implements the addressing and routing-key model: C1 of
// the mrcs-control specification.
//
// An EquipmentId is a triple (type, sector, serial) naming a single piece of
// simulated equipment. An EquipmentFilter is the same shape with each field
// optionally wildcarded, used on the subscribe side of the broker and to
// describe broadcast targets on the publish side. Both render to the same
// three-token dotted wire form; a RoutingKey concatenates a source and a
// target triple into the six-token form the topic exchange matches on.
package equipment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/mrcserr"
)

// Type is the 3-letter equipment class enum.
type Type string

const (
	MPU Type = "MPU" // motive power unit
	CRN Type = "CRN" // cron/clock/crontab fleet-control nodes
	MLG Type = "MLG" // message logger
	SCH Type = "SCH" // scheduling client
	TST Type = "TST" // test harness equipment
	SBO Type = "SBO" // signal box
	OMP Type = "OMP" // operator monitoring point
)

var knownTypes = map[Type]bool{
	MPU: true, CRN: true, MLG: true, SCH: true, TST: true, SBO: true, OMP: true,
}

func (t Type) valid() bool {
	return knownTypes[t]
}

// serialWidth is the zero-padding width for the sector and serial tokens.
// Grounded on original_source's own wire examples ("SCH.*.001"), which use
// three digits; spec.md's prose examples ("SBO.01.02") are informal and not
// taken as the literal wire width (see DESIGN.md).
const serialWidth = 3

// Id identifies a single piece of equipment. Sector is optional; a nil
// Sector renders as the wildcard sentinel "*" on the wire, matching the
// original implementation's own serialized examples (see DESIGN.md for the
// Open Question this resolves).
type Id struct {
	Type   Type
	Sector *uint
	Serial uint
}

// New builds an Id. sector may be nil for "no sector".
func New(t Type, sector *uint, serial uint) Id {
	return Id{Type: t, Sector: sector, Serial: serial}
}

// Format renders the canonical three-token dotted form: TYPE.SSS.NNN.
func (id Id) Format() string {
	return fmt.Sprintf("%s.%s.%s", id.Type, sectorToken(id.Sector), numToken(id.Serial))
}

func (id Id) String() string { return id.Format() }

// Equal reports whether two Ids name the same equipment.
func (id Id) Equal(other Id) bool {
	if id.Type != other.Type || id.Serial != other.Serial {
		return false
	}
	if (id.Sector == nil) != (other.Sector == nil) {
		return false
	}
	return id.Sector == nil || *id.Sector == *other.Sector
}

// ParseId parses a three-token equipment reference into an Id. A wildcard
// type or serial is rejected; a "*" sector is read as an absent sector, the
// form Format gives an Id with no sector.
func ParseId(s string) (Id, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Id{}, fmt.Errorf("%w: %q: expected 3 tokens", mrcserr.ErrMalformedKey, s)
	}

	typ, err := parseType(parts[0], false)
	if err != nil || typ == nil {
		return Id{}, fmt.Errorf("%w: %q: bad type token", mrcserr.ErrMalformedKey, s)
	}

	sector, _, err := parseSector(parts[1], true)
	if err != nil {
		return Id{}, err
	}

	serial, wild, err := parseNum(parts[2], false)
	if err != nil || wild {
		return Id{}, fmt.Errorf("%w: %q: bad serial token", mrcserr.ErrMalformedKey, s)
	}

	return Id{Type: *typ, Sector: sector, Serial: serial}, nil
}

// Filter is the wildcarded counterpart of Id, used on the subscribe side of
// the broker. A nil field means "match anything" for that field.
type Filter struct {
	Type   *Type
	Sector *uint
	Serial *uint
}

// All returns the all-wildcards filter. Any is an alias, since call sites
// read more naturally one way or the other depending on whether they're
// describing a broadcast target or a catch-all subscription.
func All() Filter { return Filter{} }
func Any() Filter { return All() }

// FilterFromId builds the exact-match Filter naming a single Id, for
// binding a queue to traffic addressed to one well-known node.
func FilterFromId(id Id) Filter {
	t := id.Type
	serial := id.Serial
	return Filter{Type: &t, Sector: id.Sector, Serial: &serial}
}

// Matches reports whether every non-wildcard field of f equals the
// corresponding field of id. A wildcard sector matches an id whose sector is
// absent as well as one whose sector is present.
func Matches(f Filter, id Id) bool {
	if f.Type != nil && *f.Type != id.Type {
		return false
	}
	if f.Sector != nil {
		if id.Sector == nil || *id.Sector != *f.Sector {
			return false
		}
	}
	if f.Serial != nil && *f.Serial != id.Serial {
		return false
	}
	return true
}

// Format renders the filter's three-token dotted form, with "*" for each
// wildcard field.
func (f Filter) Format() string {
	typeTok := "*"
	if f.Type != nil {
		typeTok = string(*f.Type)
	}
	return fmt.Sprintf("%s.%s.%s", typeTok, sectorToken(f.Sector), optNumToken(f.Serial))
}

func (f Filter) String() string { return f.Format() }

// ParseFilter parses a three-token equipment reference where any token may
// be "*".
func ParseFilter(s string) (Filter, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Filter{}, fmt.Errorf("%w: %q: expected 3 tokens", mrcserr.ErrMalformedKey, s)
	}

	typ, err := parseType(parts[0], true)
	if err != nil {
		return Filter{}, err
	}

	sector, sectorWild, err := parseSector(parts[1], true)
	if err != nil {
		return Filter{}, err
	}
	var sectorField *uint
	if !sectorWild {
		sectorField = sector
	}

	serial, serialWild, err := parseNum(parts[2], true)
	if err != nil {
		return Filter{}, err
	}
	var serialField *uint
	if !serialWild {
		serialField = &serial
	}

	return Filter{Type: typ, Sector: sectorField, Serial: serialField}, nil
}

// ---- token helpers -------------------------------------------------------

func sectorToken(sector *uint) string {
	if sector == nil {
		return "*"
	}
	return numToken(*sector)
}

func optNumToken(n *uint) string {
	if n == nil {
		return "*"
	}
	return numToken(*n)
}

func numToken(n uint) string {
	return fmt.Sprintf("%0*d", serialWidth, n)
}

func parseType(tok string, allowWildcard bool) (*Type, error) {
	if tok == "*" {
		if !allowWildcard {
			return nil, fmt.Errorf("%w: %q: wildcard type not permitted here", mrcserr.ErrMalformedKey, tok)
		}
		return nil, nil
	}

	t := Type(strings.ToUpper(tok))
	if !t.valid() {
		return nil, fmt.Errorf("%w: %q: unknown equipment type", mrcserr.ErrMalformedKey, tok)
	}
	return &t, nil
}

// parseSector parses the sector token. The wildcard sentinel "*" doubles as
// "absent" for an Id and "any sector" for a Filter; the caller disambiguates
// via context (ParseId treats a wildcard sector as "absent").
func parseSector(tok string, allowWildcard bool) (*uint, bool, error) {
	if tok == "*" {
		if !allowWildcard {
			return nil, false, fmt.Errorf("%w: %q: wildcard sector not permitted here", mrcserr.ErrMalformedKey, tok)
		}
		return nil, true, nil
	}

	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: bad sector token", mrcserr.ErrMalformedKey, tok)
	}
	v := uint(n)
	return &v, false, nil
}

func parseNum(tok string, allowWildcard bool) (uint, bool, error) {
	if tok == "*" {
		if !allowWildcard {
			return 0, false, fmt.Errorf("%w: %q: wildcard not permitted here", mrcserr.ErrMalformedKey, tok)
		}
		return 0, true, nil
	}

	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q: bad numeric token", mrcserr.ErrMalformedKey, tok)
	}
	return uint(n), false, nil
}
