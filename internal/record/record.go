// Package record frames cache payloads with an absolute expiry for on-disk storage.
//
// Layout:
//
//	<expiresAt unix seconds, decimal>\n<msgpack bin(payload)>
//
// The msgpack bin header carries the payload length, so a truncated or padded
// record is detected on Decode instead of being served as a shorter value.
package record

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Separator ends the expiry header.
const Separator = '\n'

var (
	ErrMalformedHeader  = errors.New("record: malformed expiry header")
	ErrMalformedPayload = errors.New("record: malformed payload")
)

// ExpiresAt returns the absolute unix second at which a record written at now
// with ttl stops being valid. Fractions of a second round up.
func ExpiresAt(now time.Time, ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if ttl%time.Second > 0 {
		secs++
	}
	return now.Unix() + secs
}

// Expired reports whether a record with expiresAt is no longer valid at now.
func Expired(expiresAt int64, now time.Time) bool {
	return expiresAt <= now.Unix()
}

// Encode frames payload with an expiry of now+ttl.
func Encode(payload []byte, ttl time.Duration, now time.Time) ([]byte, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	hdr := strconv.AppendInt(nil, ExpiresAt(now, ttl), 10)

	out := make([]byte, 0, len(hdr)+1+len(body))
	out = append(out, hdr...)
	out = append(out, Separator)
	out = append(out, body...)
	return out, nil
}

// Decode splits b into payload and expiry. It does not judge expiry; callers
// compare against their own clock with Expired.
func Decode(b []byte) (payload []byte, expiresAt int64, err error) {
	i := bytes.IndexByte(b, Separator)
	if i <= 0 {
		return nil, 0, ErrMalformedHeader
	}
	expiresAt, err = strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return nil, 0, ErrMalformedHeader
	}

	r := bytes.NewReader(b[i+1:])
	dec := msgpack.NewDecoder(r)
	code, err := dec.PeekCode()
	if err != nil {
		return nil, 0, ErrMalformedPayload
	}
	switch code {
	case msgpcode.Nil, msgpcode.Bin8, msgpcode.Bin16, msgpcode.Bin32:
	default:
		return nil, 0, ErrMalformedPayload
	}
	payload, err = dec.DecodeBytes()
	if err != nil || r.Len() != 0 {
		return nil, 0, ErrMalformedPayload
	}
	return payload, expiresAt, nil
}
