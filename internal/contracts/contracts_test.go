package contracts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateHelpers(t *testing.T) {
	d, err := AddDays("2024-03-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d)

	n, err := DaysBetween("2024-01-01", "2024-04-10")
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	_, err = ParseDate("2024/01/01")
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2024-01-05", false}, // Friday
		{"2024-01-06", true},  // Saturday
		{"2024-01-07", true},  // Sunday
		{"2024-01-08", false}, // Monday
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWeekend(tt.date))
		})
	}
}

func TestTrendStatus_Known(t *testing.T) {
	assert.True(t, StatusGreen.Known())
	assert.True(t, StatusYellow.Known())
	assert.True(t, StatusRed.Known())
	assert.False(t, StatusUnknown.Known())
}

func TestUniverseItem_Symbol(t *testing.T) {
	assert.Equal(t, "BRK-B", UniverseItem{Ticker: "BRK.B", ProviderSymbol: "BRK-B"}.Symbol())
	assert.Equal(t, "AAPL", UniverseItem{Ticker: "AAPL"}.Symbol())
}

func TestUniverse_GroupsAndSubset(t *testing.T) {
	u := &Universe{
		ID: "core",
		Items: []UniverseItem{
			{Ticker: "AAPL", Group: "tech"},
			{Ticker: "XOM", Group: "energy"},
			{Ticker: "MSFT", Group: "tech"},
			{Ticker: "SPY"},
		},
	}

	assert.Equal(t, []string{"tech", "energy"}, u.Groups())

	tech := u.Subset("tech")
	assert.Equal(t, 2, tech.Size())
	assert.Equal(t, "core", tech.ID)
	assert.Equal(t, 4, u.Size(), "subset must not mutate the parent")
}

func TestFetchError(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("fetch AAPL: %w", NewFetchError(ErrKindRetryable, "AAPL", "transport", base))

	assert.Equal(t, ErrKindRetryable, KindOf(err))
	assert.True(t, errors.Is(err, base))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "[AAPL]")

	notFound := NewFetchError(ErrKindNotFound, "ZZZZ", "no data", nil)
	assert.True(t, IsNotFound(notFound))
	assert.Equal(t, ErrKindRetryable, KindOf(errors.New("untyped")))
}
