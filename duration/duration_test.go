package duration

import (
	"testing"
	"time"

	"notekeeper/timezone"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFakeClock(t *testing.T, now time.Time) clock.FakeClock {
	t.Helper()

	fake := clock.NewFake()
	fake.Set(now)

	old := clk
	clk = fake
	t.Cleanup(func() { clk = old })

	return fake
}

func TestResolveRelative(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	withFakeClock(t, now)

	cases := []struct {
		token string
		want  time.Duration
	}{
		{"1м", time.Minute},
		{"10м", 10 * time.Minute},
		{"30м", 30 * time.Minute},
		{"1ч", time.Hour},
		{"2ч", 2 * time.Hour},
		{"1д", 24 * time.Hour},
		{"3н", 3 * 7 * 24 * time.Hour},
	}

	for _, tc := range cases {
		got, ok := Resolve(tc.token)
		require.True(t, ok, tc.token)
		assert.Equal(t, now.Add(tc.want), got, tc.token)
	}
}

func TestResolveMonotonicInMagnitude(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	withFakeClock(t, now)

	prev, ok := Resolve("1м")
	require.True(t, ok)
	for _, token := range []string{"2м", "10м", "100м"} {
		next, ok := Resolve(token)
		require.True(t, ok, token)
		assert.True(t, next.After(prev), token)
		prev = next
	}
}

func TestResolveAbsolute(t *testing.T) {
	got, ok := Resolve("01-08-2024 12:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 8, 1, 12, 0, 0, 0, timezone.Display()), got)
}

func TestResolveTrimsInput(t *testing.T) {
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	withFakeClock(t, now)

	got, ok := Resolve("  10м ")
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Minute), got)
}

func TestResolveMalformed(t *testing.T) {
	malformed := []string{
		"",
		"м",              // no magnitude
		"10",             // no unit
		"10x",            // unknown suffix
		"десятьм",        // non-numeric magnitude
		"1.5ч",           // fractional magnitude
		"10 м",           // inner space
		"01-08-2024",     // date without time
		"2024-08-01 12:00", // wrong field order
		"32-13-2024 25:61", // out-of-range fields
	}

	for _, token := range malformed {
		_, ok := Resolve(token)
		assert.False(t, ok, "token %q", token)
	}
}
