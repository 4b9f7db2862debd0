package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x, y float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x, y}, {x, y + 1}, {x + 1, y + 1}, {x + 1, y}, {x, y}}}}
}

func testBoundaries() StaticBoundaries {
	return StaticBoundaries{
		"Texas":                square(-100, 30),
		"Oklahoma":             square(-98, 35),
		"New Mexico":           square(-106, 34),
		"District of Columbia": square(-77, 38),
	}
}

func TestResolveRegion(t *testing.T) {
	cases := []struct {
		input, region, code string
	}{
		{"texas", "Texas", "TX"},
		{"  TEXAS ", "Texas", "TX"},
		{"tx", "Texas", "TX"},
		{"new mexico", "New Mexico", "NM"},
		{"District Of Columbia", "District of Columbia", "DC"},
	}
	for _, tc := range cases {
		region, code, err := ResolveRegion(tc.input, testBoundaries())
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.region, region)
		assert.Equal(t, tc.code, code)
	}
}

func TestResolveRegion_Unknown(t *testing.T) {
	_, _, err := ResolveRegion("puerto rico", testBoundaries())
	require.ErrorIs(t, err, ErrUnknownRegion)
	assert.Contains(t, err.Error(), "Puerto Rico is not a state in the contiguous US")

	// A real state outside the boundary set is rejected too.
	_, _, err = ResolveRegion("Alaska", testBoundaries())
	require.ErrorIs(t, err, ErrUnknownRegion)
	assert.Contains(t, err.Error(), "Alaska is not a state")
}

func TestSelect(t *testing.T) {
	sel, err := Select(DefaultCatalog(), testBoundaries(), "2019", "texas")
	require.NoError(t, err)
	assert.Equal(t, 2019, sel.Year.Year)
	assert.Equal(t, "TX", sel.Code)
	assert.Equal(t, "Texas", sel.DisplayName())

	_, err = Select(DefaultCatalog(), testBoundaries(), "2017", "texas")
	require.ErrorIs(t, err, ErrUnsupportedYear)

	_, err = Select(DefaultCatalog(), testBoundaries(), "2019", "atlantis")
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestStaticBoundaries(t *testing.T) {
	b := testBoundaries()

	assert.Equal(t, []string{"District of Columbia", "New Mexico", "Oklahoma", "Texas"}, b.Regions())

	mp, err := b.Boundary("texas")
	require.NoError(t, err)
	assert.Len(t, mp, 1)

	_, err = b.Boundary("nowhere")
	require.ErrorIs(t, err, ErrUnknownRegion)
}

func TestStateLookups(t *testing.T) {
	code, ok := StateCode("North Carolina")
	require.True(t, ok)
	assert.Equal(t, "NC", code)

	name, ok := StateName("nc")
	require.True(t, ok)
	assert.Equal(t, "north carolina", name)

	_, ok = StateCode("Puerto Rico")
	assert.False(t, ok)

	assert.Equal(t, "West Virginia", TitleCase("west VIRGINIA"))
}
