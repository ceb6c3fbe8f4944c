package record

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("bar"),
		[]byte("line one\nline two\n"),
		bytes.Repeat([]byte{0xff, 0x00}, 40_000),
	}
	for _, payload := range cases {
		enc, err := Encode(payload, 10*time.Second, epoch)
		require.NoError(t, err)

		got, exp, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, epoch.Unix()+10, exp)
		require.True(t, bytes.Equal(payload, got))
	}
}

func TestHeaderIsDecimalUnixSeconds(t *testing.T) {
	enc, err := Encode([]byte("x"), time.Minute, epoch)
	require.NoError(t, err)
	i := bytes.IndexByte(enc, Separator)
	require.Equal(t, strconv.FormatInt(epoch.Unix()+60, 10), string(enc[:i]))
}

func TestExpiresAtRoundsUp(t *testing.T) {
	require.Equal(t, epoch.Unix()+1, ExpiresAt(epoch, time.Second))
	require.Equal(t, epoch.Unix()+1, ExpiresAt(epoch, 10*time.Millisecond))
	require.Equal(t, epoch.Unix()+2, ExpiresAt(epoch, 1500*time.Millisecond))
}

func TestExpired(t *testing.T) {
	exp := ExpiresAt(epoch, time.Second)
	require.False(t, Expired(exp, epoch))
	require.True(t, Expired(exp, epoch.Add(time.Second)))
	require.True(t, Expired(exp, epoch.Add(2*time.Second)))
}

func TestDecodeMalformedHeader(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "\nxyz", "12a\n\xc4\x00", "  12\n\xc4\x00"} {
		_, _, err := Decode([]byte(in))
		require.ErrorIs(t, err, ErrMalformedHeader, "input=%q", in)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	good, err := Encode([]byte("hello world"), time.Minute, epoch)
	require.NoError(t, err)

	inputs := [][]byte{
		[]byte("1700000100\n"),
		[]byte("1700000100\na;x/sdr"),
		[]byte("1700000100\nabc"),
		good[:len(good)-3],                     // half-written
		append(append([]byte{}, good...), 'x'), // trailing garbage
		[]byte("1700000100\n\xa3abc"),          // msgpack str, not bin
	}
	for _, in := range inputs {
		_, _, err := Decode(in)
		require.ErrorIs(t, err, ErrMalformedPayload, "input=%q", in)
	}
}
