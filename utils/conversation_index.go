package utils

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	conversationHeaderLen = 22
	conversationHopLen    = 5
)

// filetimeEpochUnix is 1601-01-01T00:00:00Z expressed in Unix seconds.
var filetimeEpochUnix = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()

// ConversationIndex is the decoded form of a message's conversationIndex property.
type ConversationIndex struct {
	GUID     [16]byte
	Timeline []time.Time
}

// GUIDHex renders the thread-origin guid as lowercase hex.
func (ci ConversationIndex) GUIDHex() string {
	return hex.EncodeToString(ci.GUID[:])
}

// HopCount is the number of reply blocks in the index.
func (ci ConversationIndex) HopCount() int {
	if len(ci.Timeline) == 0 {
		return 0
	}
	return len(ci.Timeline) - 1
}

// ThreadCount is the position of the message in its thread; 1 means first.
func (ci ConversationIndex) ThreadCount() int {
	return len(ci.Timeline)
}

// Root returns the thread-origin timestamp.
func (ci ConversationIndex) Root() time.Time {
	if len(ci.Timeline) == 0 {
		return time.Time{}
	}
	return ci.Timeline[0]
}

// Last returns the timestamp of the most recent hop, or the root when there are none.
func (ci ConversationIndex) Last() time.Time {
	if len(ci.Timeline) == 0 {
		return time.Time{}
	}
	return ci.Timeline[len(ci.Timeline)-1]
}

// ParseConversationIndex decodes the base64 form Graph returns and then the binary layout.
func ParseConversationIndex(encoded string) (ConversationIndex, error) {
	trimmed := strings.TrimSpace(encoded)
	if trimmed == "" {
		return ConversationIndex{}, fmt.Errorf("%w: empty conversation index", ErrMalformedIndex)
	}
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return ConversationIndex{}, fmt.Errorf("%w: base64: %v", ErrMalformedIndex, err)
	}
	return DecodeConversationIndex(raw)
}

// DecodeConversationIndex unpacks the 22-byte header (48-bit FILETIME fragment plus
// 16-byte guid) and every 5-byte hop that follows it.
//
// The header timestamp keeps only the high 48 bits of the 64-bit tick count; the low
// 16 bits are assumed zero by the upstream format. Hop deltas are the first 4 bytes
// of each block shifted left by 18 bits, in ticks; the fifth byte is ignored.
// A trailing block shorter than 5 bytes is rejected.
func DecodeConversationIndex(raw []byte) (ConversationIndex, error) {
	if len(raw) < conversationHeaderLen {
		return ConversationIndex{}, fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrMalformedIndex, conversationHeaderLen, len(raw))
	}
	tail := len(raw) - conversationHeaderLen
	if tail%conversationHopLen != 0 {
		return ConversationIndex{}, fmt.Errorf("%w: %d trailing bytes are not a whole number of %d-byte hops",
			ErrMalformedIndex, tail, conversationHopLen)
	}

	var ci ConversationIndex
	copy(ci.GUID[:], raw[6:conversationHeaderLen])

	var padded [8]byte
	copy(padded[:6], raw[:6])
	ticks := binary.BigEndian.Uint64(padded[:])

	ci.Timeline = make([]time.Time, 0, 1+tail/conversationHopLen)
	ci.Timeline = append(ci.Timeline, filetimeFromMicros(ticks/10))

	for off := conversationHeaderLen; off < len(raw); off += conversationHopLen {
		delta := binary.BigEndian.Uint32(raw[off : off+4])
		micros := (uint64(delta) << 18) / 10
		prev := ci.Timeline[len(ci.Timeline)-1]
		ci.Timeline = append(ci.Timeline, prev.Add(time.Duration(micros)*time.Microsecond))
	}

	return ci, nil
}

// filetimeFromMicros converts microseconds since 1601 to a UTC time. The span
// overflows time.Duration, so it goes through Unix seconds.
func filetimeFromMicros(micros uint64) time.Time {
	secs := int64(micros / 1_000_000)
	rem := int64(micros % 1_000_000)
	return time.Unix(filetimeEpochUnix+secs, rem*int64(time.Microsecond)).UTC()
}
