package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFamily_Next(t *testing.T) {
	now := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	t.Run("initializes missing counter", func(t *testing.T) {
		c := FamilyNCR.Next(Counter{}, false, now)
		assert.Equal(t, Counter{Year: 2025, LastNumber: 1}, c)
	})

	t.Run("increments within the same year", func(t *testing.T) {
		c := FamilyReturn.Next(Counter{Year: 2025, LastNumber: 41}, true, now)
		assert.Equal(t, 42, c.LastNumber)
		assert.Equal(t, 2025, c.Year)
	})

	t.Run("resets on year change regardless of last number", func(t *testing.T) {
		c := FamilyNCR.Next(Counter{Year: 2024, LastNumber: 987}, true, now)
		assert.Equal(t, Counter{Year: 2025, LastNumber: 1}, c)
	})

	t.Run("collection counter carries the month", func(t *testing.T) {
		c := FamilyCollection.Next(Counter{}, false, now)
		require.NotNil(t, c.Month)
		assert.Equal(t, 3, *c.Month)
		assert.Equal(t, 1, c.LastNumber)
	})

	t.Run("collection counter resets on month change", func(t *testing.T) {
		c := FamilyCollection.Next(Counter{Year: 2025, Month: intPtr(2), LastNumber: 17}, true, now)
		assert.Equal(t, 1, c.LastNumber)
		assert.Equal(t, 3, *c.Month)
	})

	t.Run("collection counter without month is a new period", func(t *testing.T) {
		c := FamilyCollection.Next(Counter{Year: 2025, LastNumber: 5}, true, now)
		assert.Equal(t, 1, c.LastNumber)
	})

	t.Run("collection counter increments within the month", func(t *testing.T) {
		c := FamilyCollection.Next(Counter{Year: 2025, Month: intPtr(3), LastNumber: 9}, true, now)
		assert.Equal(t, 10, c.LastNumber)
	})
}

func TestFamily_Rewind(t *testing.T) {
	assert.Equal(t, 4, FamilyNCR.Rewind(Counter{Year: 2025, LastNumber: 5}).LastNumber)
	assert.Equal(t, 0, FamilyNCR.Rewind(Counter{Year: 2025, LastNumber: 0}).LastNumber)
}

func TestFamily_Format(t *testing.T) {
	assert.Equal(t, "NCR-2025-0001", FamilyNCR.Format(Counter{Year: 2025, LastNumber: 1}))
	assert.Equal(t, "RT-2025-0123", FamilyReturn.Format(Counter{Year: 2025, LastNumber: 123}))
	assert.Equal(t, "RT-2025-12345", FamilyReturn.Format(Counter{Year: 2025, LastNumber: 12345}))
	assert.Equal(t, "COL-202503-0007", FamilyCollection.Format(Counter{Year: 2025, Month: intPtr(3), LastNumber: 7}))
}

func TestSentinel(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	s := FamilyNCR.Sentinel(now)

	assert.Regexp(t, `^NCR-2025-ERR\d{4}$`, s)
	assert.True(t, IsSentinel(s))
	assert.True(t, IsSentinel(FamilyCollection.Sentinel(now)))
	assert.False(t, IsSentinel("NCR-2025-0001"))
	assert.False(t, IsSentinel("COL-202501-0001"))
}

func TestDecodeCounter(t *testing.T) {
	_, ok, err := DecodeCounter(nil)
	require.NoError(t, err)
	assert.False(t, ok)

	c, ok, err := DecodeCounter([]byte(`{"year":2025,"month":4,"lastNumber":3}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, c.LastNumber)
	assert.Equal(t, 4, *c.Month)

	_, _, err = DecodeCounter([]byte(`{bad`))
	assert.Error(t, err)
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("collection")
	require.NoError(t, err)
	assert.Equal(t, FamilyCollection, f)

	f, err = ParseFamily("ncr_counter")
	require.NoError(t, err)
	assert.Equal(t, FamilyNCR, f)

	_, err = ParseFamily("invoice")
	assert.Error(t, err)
	assert.Equal(t, "counters/return_counter", FamilyReturn.Path())
}
