package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/store"
)

func TestRenderHistoryPNG(t *testing.T) {
	m := &store.Monitor{Name: "tvl", Unit: "USD", DecimalPlaces: 2, Color: "#ff8800"}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var samples []store.Sample
	for i := 0; i < 20; i++ {
		samples = append(samples, store.Sample{
			Value:      1000 + float64(i*10),
			ComputedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	var buf bytes.Buffer
	require.NoError(t, RenderHistory(&buf, m, samples))

	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, buf.Bytes()[:4])
}

func TestRenderHistoryTooFewPoints(t *testing.T) {
	m := &store.Monitor{Name: "tvl"}
	var buf bytes.Buffer
	err := RenderHistory(&buf, m, []store.Sample{{Value: 1, ComputedAt: time.Now()}})
	assert.Error(t, err)
}

func TestDownsample(t *testing.T) {
	var samples []store.Sample
	for i := 0; i < 1000; i++ {
		samples = append(samples, store.Sample{Value: float64(i)})
	}

	got := downsample(samples, 100)
	require.Len(t, got, 100)
	assert.Equal(t, 0.0, got[0].Value)
	assert.Equal(t, 999.0, got[99].Value)

	assert.Len(t, downsample(samples[:50], 100), 50)
}

func TestParseHexColor(t *testing.T) {
	c := parseHexColor("#ff8800")
	assert.Equal(t, uint8(0xff), c.R)
	assert.Equal(t, uint8(0x88), c.G)
	assert.Equal(t, uint8(0x00), c.B)

	fallback := parseHexColor("red")
	assert.Equal(t, uint8(59), fallback.R)
}
