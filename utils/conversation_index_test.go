package utils

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Captured from a three-message reply chain.
const sampleIndex = "Adpu5r/IjUxaHp8rTD2Of2BxgpOktQASNFYhAAAEAJw="

func TestDecodeConversationIndexRootOnly(t *testing.T) {
	raw := append([]byte{0x01, 0x44, 0x07, 0x48, 0x50, 0x00}, make([]byte, 16)...)

	ci, err := DecodeConversationIndex(raw)
	require.NoError(t, err)

	// 0x0144074850000000 ticks / 10 = 9120589961546956 µs after 1601-01-01.
	want := time.Date(1890, time.January, 8, 9, 12, 41, 546956000, time.UTC)
	assert.True(t, ci.Root().Equal(want), "root = %s, want %s", ci.Root(), want)
	assert.Equal(t, 1, ci.ThreadCount())
	assert.Equal(t, 0, ci.HopCount())
	assert.Equal(t, "00000000000000000000000000000000", ci.GUIDHex())
}

func TestDecodeConversationIndexSingleHop(t *testing.T) {
	raw := append([]byte{0x01, 0x44, 0x07, 0x48, 0x50, 0x00}, make([]byte, 16)...)
	raw = append(raw, 0x00, 0x00, 0x10, 0x00, 0x07)
	require.Len(t, raw, 27)

	ci, err := DecodeConversationIndex(raw)
	require.NoError(t, err)
	require.Len(t, ci.Timeline, 2)

	assert.False(t, ci.Timeline[1].Before(ci.Timeline[0]))
	// 0x1000 << 18 = 2^30 ticks -> 107374182 µs.
	assert.Equal(t, 107374182*time.Microsecond, ci.Timeline[1].Sub(ci.Timeline[0]))
	assert.Equal(t, 2, ci.ThreadCount())
}

func TestParseConversationIndexSample(t *testing.T) {
	ci, err := ParseConversationIndex(sampleIndex)
	require.NoError(t, err)

	assert.Equal(t, "8d4c5a1e9f2b4c3d8e7f60718293a4b5", ci.GUIDHex())
	require.Equal(t, 3, ci.ThreadCount())
	assert.Equal(t, 2, ci.HopCount())

	want := []time.Time{
		time.Date(2024, time.March, 5, 10, 20, 29, 993984000, time.UTC),
		time.Date(2024, time.March, 5, 19, 1, 44, 979046000, time.UTC),
		time.Date(2024, time.March, 5, 19, 2, 11, 822591000, time.UTC),
	}
	for i := range want {
		assert.True(t, ci.Timeline[i].Equal(want[i]), "timeline[%d] = %s, want %s", i, ci.Timeline[i], want[i])
	}
	assert.True(t, ci.Last().Equal(want[2]))
}

func TestDecodeConversationIndexDeterministic(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 22+5*4)
	first, err := DecodeConversationIndex(raw)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := DecodeConversationIndex(raw)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDecodeConversationIndexMonotonic(t *testing.T) {
	raw := bytes.Repeat([]byte{0xff}, 22+5*6)
	ci, err := DecodeConversationIndex(raw)
	require.NoError(t, err)
	for i := 1; i < len(ci.Timeline); i++ {
		assert.False(t, ci.Timeline[i].Before(ci.Timeline[i-1]), "hop %d went backwards", i)
	}
}

func TestDecodeConversationIndexMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 21)},
		{"partial hop", make([]byte, 22+3)},
		{"hop plus partial", make([]byte, 22+5+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeConversationIndex(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedIndex))
		})
	}
}

func TestParseConversationIndexBadBase64(t *testing.T) {
	for _, in := range []string{"", "   ", "not*base64!"} {
		_, err := ParseConversationIndex(in)
		assert.ErrorIs(t, err, ErrMalformedIndex, "input %q", in)
	}
}

func TestUpstreamWrapsOnce(t *testing.T) {
	base := errors.New("connection refused")
	err := Upstream("get parameter", base)
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.ErrorIs(t, err, base)

	again := Upstream("renew", err)
	assert.ErrorIs(t, again, ErrUpstreamFailure)
	assert.Nil(t, Upstream("noop", nil))
}
