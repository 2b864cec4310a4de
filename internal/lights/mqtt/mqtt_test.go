package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/ambient-video-lights/lights"
)

func TestEncodings(t *testing.T) {
	cmd := Command{
		InstanceID:   "living-room",
		Color:        lights.Color{Red: 200, Green: 10, Blue: 0},
		Hex:          "#C80A00",
		TransitionMs: 500,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, enc := range []Encoding{JSON, MsgPack} {
		t.Run(enc.String(), func(t *testing.T) {
			data, err := enc.Marshal(cmd)
			require.NoError(t, err)

			var got Command
			require.NoError(t, enc.Unmarshal(data, &got))
			assert.Equal(t, cmd.Color, got.Color)
			assert.Equal(t, cmd.InstanceID, got.InstanceID)
			assert.Equal(t, cmd.TransitionMs, got.TransitionMs)
			assert.True(t, cmd.Timestamp.Equal(got.Timestamp))
		})
	}

	data, err := JSON.Marshal(cmd)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"color":{"r":200,"g":10,"b":0}`)
}

func TestParseEncoding(t *testing.T) {
	e, err := ParseEncoding("msgpack")
	require.NoError(t, err)
	assert.Equal(t, MsgPack, e)

	e, err = ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, JSON, e)

	_, err = ParseEncoding("xml")
	assert.Error(t, err)
}

func TestNewMQTT_RequiresBrokerAndTopic(t *testing.T) {
	_, err := NewMQTT(context.Background(), Config{Topic: "ambient/color"})
	assert.Error(t, err)
}

func TestSetColor_SkipsWhileDisconnected(t *testing.T) {
	m := &MQTTLights{config: Config{Topic: "ambient/color"}}
	m.SetColorWithDuration(context.Background(), lights.Color{Red: 1}, time.Second)
	assert.Equal(t, Stats{Errors: 1}, m.Stats())
	assert.Zero(t, m.LightCount())
}
