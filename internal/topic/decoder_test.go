package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	d := NewDecoder("yyy")

	got, err := d.Decode("/yyy/Study/f2734bec8248/rssi")
	require.NoError(t, err)
	assert.Equal(t, Topic{Source: "Study", Entity: "f2734bec8248", Attribute: "rssi"}, got)
}

func TestDecode_EmptyAttribute(t *testing.T) {
	d := NewDecoder("yyy")

	got, err := d.Decode("/yyy/Study/f2734bec8248/")
	require.NoError(t, err)
	assert.Equal(t, "", got.Attribute)
}

func TestDecode_Malformed(t *testing.T) {
	d := NewDecoder("yyy")

	cases := []string{
		"/yyy/Study",
		"/yyy/Study/f2734bec8248",
		"yyy/Study/f2734bec8248/rssi",
		"/zzz/Study/f2734bec8248/rssi",
		"/yyy/Study/f2734bec8248/rssi/extra",
		"/yyy//f2734bec8248/rssi",
		"/yyy/Study//rssi",
		"",
	}

	for _, tc := range cases {
		_, err := d.Decode(tc)
		assert.ErrorIs(t, err, ErrDecode, tc)
	}
}

func TestSubscription(t *testing.T) {
	assert.Equal(t, "/yyy/+/+/+", NewDecoder("yyy").Subscription())
	assert.Equal(t, "/site7/+/+/+", NewDecoder("site7").Subscription())
}
