package sharetoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveExpiration(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	_, ok := ResolveExpiration(Never, now)
	require.False(t, ok)

	cases := map[ExpirationChoice]int64{
		OneHour: 3600,
		OneDay:  86400,
		OneWeek: 604800,
	}
	for choice, offset := range cases {
		exp, ok := ResolveExpiration(choice, now)
		require.True(t, ok, choice.String())
		require.Equal(t, now.Unix()+offset, exp.Unix(), choice.String())
		require.Equal(t, time.Duration(offset)*time.Second, choice.Duration())
	}

	_, ok = ResolveExpiration(ExpirationChoice(42), now)
	require.False(t, ok)
}

func TestParseExpirationChoice(t *testing.T) {
	cases := map[string]ExpirationChoice{
		"":              Never,
		"never":         Never,
		"No Expiration": Never,
		"1h":            OneHour,
		" 1 Hour ":      OneHour,
		"1D":            OneDay,
		"1 day":         OneDay,
		"1w":            OneWeek,
		"week":          OneWeek,
	}
	for in, want := range cases {
		got, err := ParseExpirationChoice(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseExpirationChoice("1 month")
	require.Error(t, err)
}

func TestExpirationChoice_Text(t *testing.T) {
	for _, c := range []ExpirationChoice{Never, OneHour, OneDay, OneWeek} {
		text, err := c.MarshalText()
		require.NoError(t, err)

		var back ExpirationChoice
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, c, back)

		parsed, err := ParseExpirationChoice(c.Label())
		require.NoError(t, err)
		require.Equal(t, c, parsed)
	}

	_, err := ExpirationChoice(9).MarshalText()
	require.Error(t, err)
	require.False(t, ExpirationChoice(-1).Valid())
	require.Equal(t, "ExpirationChoice(9)", ExpirationChoice(9).String())
}
