package ambient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/limiter"
	"github.com/scheerer/ambient-video-lights/internal/smoothing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "SCREEN", config.FrameSource)
	assert.Equal(t, 100*time.Millisecond, config.CaptureInterval)
	assert.Equal(t, 200*time.Millisecond, config.RecordInterval)
	assert.Equal(t, 500*time.Millisecond, config.ChangeInterval)
	assert.Equal(t, "LIFX", config.LightType)
	assert.Equal(t, "strip", config.HueLightFilter)
	assert.Equal(t, 0.65, config.MaxBrightness)

	analysis, err := config.Analysis()
	require.NoError(t, err)
	assert.Equal(t, extract.DefaultOptions(), analysis.Options)
	assert.Equal(t, extract.PureAverage, analysis.Mode)
	assert.Equal(t, extract.RuleOfThirds, analysis.Bias)
	assert.Nil(t, analysis.Region)

	assert.Equal(t, smoothing.DefaultOptions(), config.SmoothingOptions())
	assert.Equal(t, limiter.DefaultOptions(), config.LimiterOptions())
}

func TestLoadConfig_EnvironmentThenFile(t *testing.T) {
	t.Setenv("STEP_LIMIT", "5")
	t.Setenv("CHANGE_THRESHOLD", "12")
	t.Setenv("BIAS_MODE", "golden_ratio")

	path := filepath.Join(t.TempDir(), "ambient.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
step_limit: 7
capture_interval: 250ms
region: "10,20,30,40"
analysis_mode: MOST_FREQUENT_WHOLE_COLOR
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7, config.StepLimit, "file wins over environment")
	assert.Equal(t, 12, config.ChangeThreshold, "environment kept where the file is silent")
	assert.Equal(t, 250*time.Millisecond, config.CaptureInterval)

	analysis, err := config.Analysis()
	require.NoError(t, err)
	assert.Equal(t, extract.GoldenRatio, analysis.Bias)
	assert.Equal(t, extract.MostFrequentWholeColor, analysis.Mode)
	assert.Equal(t, &extract.Region{Top: 10, Left: 20, Bottom: 30, Right: 40}, analysis.Region)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	config.AnalysisMode = "brightest"
	config.Region = "5,5,1,1"
	config.StepLimit = 0
	config.RecordInterval = 0
	config.LightType = "ZIGBEE"

	err = config.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, extract.ErrUnknownMode)
	assert.ErrorIs(t, err, extract.ErrInvalidRegion)
	for _, want := range []string{"step limit", "RECORD_INTERVAL", "ZIGBEE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_SourceAndSinkSpecifics(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	files := config
	files.FrameSource = "FILES"
	assert.ErrorContains(t, files.Validate(), "FRAMES_PATH")
	files.FramesPath = "/tmp/frames"
	assert.NoError(t, files.Validate())

	mqtt := config
	mqtt.LightType = "MQTT"
	mqtt.MQTTQoS = 3
	assert.ErrorContains(t, mqtt.Validate(), "MQTT_QOS")

	lifx := config
	lifx.MinBrightness = 0.8
	lifx.MaxBrightness = 0.5
	assert.ErrorIs(t, lifx.Validate(), ErrInvalidConfig)
}

func TestNoSignalPolicy(t *testing.T) {
	config := Config{NoSignalPolicy: "black"}
	p, err := config.noSignalPolicy()
	require.NoError(t, err)
	assert.Equal(t, BlackOnNoSignal, p)

	config.NoSignalPolicy = ""
	p, err = config.noSignalPolicy()
	require.NoError(t, err)
	assert.Equal(t, HoldOnNoSignal, p)

	config.NoSignalPolicy = "blink"
	_, err = config.noSignalPolicy()
	assert.Error(t, err)
}
