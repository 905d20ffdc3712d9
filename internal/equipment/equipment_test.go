package equipment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelrailcontrolsystems/mrcs-control/internal/equipment"
)

func sectorOf(n uint) *uint { return &n }

func TestIdFormatRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		id   equipment.Id
		want string
	}{
		{"with sector", equipment.New(equipment.SBO, sectorOf(1), 2), "SBO.001.002"},
		{"no sector", equipment.New(equipment.CRN, nil, 1), "CRN.*.001"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.id.Format())

			parsed, err := equipment.ParseId(tc.want)
			require.NoError(t, err)
			assert.True(t, tc.id.Equal(parsed))
		})
	}
}

func TestParseIdRejectsWildcardType(t *testing.T) {
	_, err := equipment.ParseId("*.001.002")
	require.Error(t, err)
}

func TestParseIdRejectsMalformedToken(t *testing.T) {
	_, err := equipment.ParseId("SBO.xx.002")
	require.Error(t, err)
}

func TestMatchesAllMatchesEverything(t *testing.T) {
	ids := []equipment.Id{
		equipment.New(equipment.MPU, sectorOf(3), 7),
		equipment.New(equipment.CRN, nil, 1),
	}
	for _, id := range ids {
		assert.True(t, equipment.Matches(equipment.All(), id))
		assert.True(t, equipment.Matches(equipment.Any(), id))
	}
}

func TestMatchesWildcardSectorMatchesAbsentSector(t *testing.T) {
	f := equipment.Filter{Type: typePtr(equipment.CRN)}
	id := equipment.New(equipment.CRN, nil, 1)
	assert.True(t, equipment.Matches(f, id))
}

func TestMatchesConcreteSectorRejectsAbsentSector(t *testing.T) {
	sector := uint(1)
	f := equipment.Filter{Type: typePtr(equipment.CRN), Sector: &sector}
	id := equipment.New(equipment.CRN, nil, 1)
	assert.False(t, equipment.Matches(f, id))
}

func TestFilterFormatRoundTrip(t *testing.T) {
	f, err := equipment.ParseFilter("*.*.*")
	require.NoError(t, err)
	assert.Equal(t, "*.*.*", f.Format())

	f2, err := equipment.ParseFilter("MPU.*.007")
	require.NoError(t, err)
	assert.Equal(t, "MPU.*.007", f2.Format())
}

func TestPublicationRoutingKeyFormatAndParse(t *testing.T) {
	source := equipment.New(equipment.SBO, sectorOf(1), 2)
	target := equipment.Filter{}
	key := equipment.PublicationRoutingKey{Source: source, Target: target}

	wire := key.Format()
	assert.Equal(t, "SBO.001.002.*.*.*", wire)

	parsed, err := equipment.ParsePublicationRoutingKey(wire)
	require.NoError(t, err)
	assert.True(t, parsed.Source.Equal(source))
}

func TestSubscriptionRoutingKeyFormatAndParse(t *testing.T) {
	key := equipment.SubscriptionRoutingKey{Source: equipment.All(), Target: equipment.All()}
	wire := key.Format()
	assert.Equal(t, "*.*.*.*.*.*", wire)

	parsed, err := equipment.ParseSubscriptionRoutingKey(wire)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseRoutingKeyRejectsWrongTokenCount(t *testing.T) {
	_, err := equipment.ParseSubscriptionRoutingKey("*.*.*.*.*")
	require.Error(t, err)
}

func typePtr(t equipment.Type) *equipment.Type { return &t }
