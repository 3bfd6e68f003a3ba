package reassembly

import (
	"strings"
	"testing"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(key models.EntityKey, pairs ...string) []models.Fragment {
	var out []models.Fragment
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, frag(key, pairs[i], pairs[i+1]))
	}
	return out
}

func TestAssemble_WellFormed(t *testing.T) {
	fragments := sequence(keyA,
		"mac", "f2734bec8248",
		"rssi", "-62",
		"volt", "3300",
		"tmr", "10",
		"xcnt", "1",
	)
	fragments[0].ObservedAt = 1700000123

	reading, err := Assemble(fragments)
	require.NoError(t, err)
	assert.Equal(t, models.Reading{
		SubmitTime:    1700000123,
		Gateway:       "Study",
		TagMAC:        "f2734bec8248",
		RSSI:          -62,
		Volt:          3300,
		Timer:         10,
		TransmitCount: 1,
	}, reading)
}

func TestAssemble_MapsByNameNotPosition(t *testing.T) {
	// 测量片段乱序到达，值仍写入正确的列
	fragments := sequence(keyA,
		"mac", "f2734bec8248",
		"tmr", "10",
		"rssi", "-62",
		"volt", "3300",
		"xcnt", "1",
	)

	reading, err := Assemble(fragments)
	require.NoError(t, err)
	assert.Equal(t, int64(-62), reading.RSSI)
	assert.Equal(t, int64(3300), reading.Volt)
	assert.Equal(t, int64(10), reading.Timer)
}

func TestAssemble_Malformed(t *testing.T) {
	cases := map[string][]models.Fragment{
		"empty":         nil,
		"missing volt":  sequence(keyA, "mac", "m", "rssi", "-1", "tmr", "1", "xcnt", "1"),
		"only terminal": sequence(keyA, "mac", "m", "xcnt", "1"),
		"not mac first": sequence(keyA, "rssi", "-1", "mac", "m", "volt", "1", "tmr", "1", "xcnt", "1"),
		"duplicate":     sequence(keyA, "mac", "m", "rssi", "-1", "rssi", "-2", "volt", "1", "tmr", "1", "xcnt", "1"),
		"non integer":   sequence(keyA, "mac", "m", "rssi", "strong", "volt", "1", "tmr", "1", "xcnt", "1"),
		"long gateway": sequence(models.EntityKey{Source: strings.Repeat("g", 26), Tag: "t"},
			"mac", "m", "rssi", "-1", "volt", "1", "tmr", "1", "xcnt", "1"),
		"long tag": sequence(models.EntityKey{Source: "g", Tag: "f2734bec8248ff"},
			"mac", "m", "rssi", "-1", "volt", "1", "tmr", "1", "xcnt", "1"),
		"long multibyte gateway": sequence(models.EntityKey{Source: strings.Repeat("ü", 26), Tag: "t"},
			"mac", "m", "rssi", "-1", "volt", "1", "tmr", "1", "xcnt", "1"),
	}

	for name, fragments := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Assemble(fragments)
			assert.ErrorIs(t, err, ErrMalformedSequence)
			assert.ErrorIs(t, err, ErrSequenceState)
		})
	}
}

func TestAssemble_WidthCountsCharacters(t *testing.T) {
	// 24 个字符，29 个字节
	gateway := "Küche-Süd-Öst-Büro-Ärzte"
	require.Equal(t, 29, len(gateway))

	fragments := sequence(models.EntityKey{Source: gateway, Tag: "f2734bec8248"},
		"mac", "f2734bec8248", "rssi", "-62", "volt", "3300", "tmr", "10", "xcnt", "1")

	reading, err := Assemble(fragments)
	require.NoError(t, err)
	assert.Equal(t, gateway, reading.Gateway)

	fragments = sequence(models.EntityKey{Source: strings.Repeat("ü", 25), Tag: "f2734bec8248"},
		"mac", "f2734bec8248", "rssi", "-62", "volt", "3300", "tmr", "10", "xcnt", "1")
	_, err = Assemble(fragments)
	assert.NoError(t, err)
}
