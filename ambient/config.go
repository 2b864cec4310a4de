package ambient

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/lights/mqtt"
	"github.com/scheerer/ambient-video-lights/internal/limiter"
	"github.com/scheerer/ambient-video-lights/internal/smoothing"
)

var ErrInvalidConfig = errors.New("invalid config")

type NoSignalPolicy string

const (
	// HoldOnNoSignal keeps the previous recent colour when a frame has no usable pixels.
	HoldOnNoSignal NoSignalPolicy = "HOLD"
	// BlackOnNoSignal records neutral black.
	BlackOnNoSignal NoSignalPolicy = "BLACK"
)

// Config holds every tunable. Values come from defaults, then the environment, then an optional YAML file.
type Config struct {
	FrameSource     string        `env:"FRAME_SOURCE" envDefault:"SCREEN" yaml:"frame_source"`
	ScreenNumber    int           `env:"SCREEN_NUMBER" envDefault:"0" yaml:"screen_number"`
	FramesPath      string        `env:"FRAMES_PATH" yaml:"frames_path"`
	CaptureInterval time.Duration `env:"CAPTURE_INTERVAL" envDefault:"100ms" yaml:"capture_interval"`

	AnalysisMode   string `env:"ANALYSIS_MODE" envDefault:"PURE_AVERAGE" yaml:"analysis_mode"`
	BiasMode       string `env:"BIAS_MODE" envDefault:"RULE_OF_THIRDS" yaml:"bias_mode"`
	Region         string `env:"REGION" yaml:"region"`
	NoSignalPolicy string `env:"NO_SIGNAL_POLICY" envDefault:"HOLD" yaml:"no_signal_policy"`

	GrayTolerance     int `env:"GRAY_TOLERANCE" envDefault:"10" yaml:"gray_tolerance"`
	BiasWeight        int `env:"BIAS_WEIGHT" envDefault:"20" yaml:"bias_weight"`
	GoldenBandLow     int `env:"GOLDEN_BAND_LOW" envDefault:"61" yaml:"golden_band_low"`
	GoldenBandHigh    int `env:"GOLDEN_BAND_HIGH" envDefault:"100" yaml:"golden_band_high"`
	GoldenBandDivisor int `env:"GOLDEN_BAND_DENOMINATOR" envDefault:"161" yaml:"golden_band_denominator"`

	RecordInterval       time.Duration `env:"RECORD_INTERVAL" envDefault:"200ms" yaml:"record_interval"`
	ChangeInterval       time.Duration `env:"CHANGE_INTERVAL" envDefault:"500ms" yaml:"change_interval"`
	ShortWindowSize      int           `env:"SHORT_WINDOW_SIZE" envDefault:"30" yaml:"short_window_size"`
	LongWindowMultiplier int           `env:"LONG_WINDOW_MULTIPLIER" envDefault:"10" yaml:"long_window_multiplier"`
	ShortWeight          float64       `env:"SHORT_WEIGHT" envDefault:"1" yaml:"short_weight"`
	LongWeight           float64       `env:"LONG_WEIGHT" envDefault:"1" yaml:"long_weight"`
	StepLimit            int           `env:"STEP_LIMIT" envDefault:"3" yaml:"step_limit"`
	ChangeThreshold      int           `env:"CHANGE_THRESHOLD" envDefault:"30" yaml:"change_threshold"`

	LightType      string  `env:"LIGHT_TYPE" envDefault:"LIFX" yaml:"light_type"`
	LightGroupName string  `env:"LIGHT_GROUP_NAME" envDefault:"ARCADE" yaml:"light_group_name"`
	MinBrightness  float64 `env:"MIN_BRIGHTNESS" envDefault:"0" yaml:"min_brightness"`
	MaxBrightness  float64 `env:"MAX_BRIGHTNESS" envDefault:"0.65" yaml:"max_brightness"`

	HueBridgeHost  string `env:"HUE_BRIDGE_HOST" yaml:"hue_bridge_host"`
	HueUsername    string `env:"HUE_USERNAME" yaml:"hue_username"`
	HueLightFilter string `env:"HUE_LIGHT_FILTER" envDefault:"strip" yaml:"hue_light_filter"`

	MQTTBroker   string `env:"MQTT_BROKER" envDefault:"tcp://localhost:1883" yaml:"mqtt_broker"`
	MQTTTopic    string `env:"MQTT_TOPIC" envDefault:"ambient/color" yaml:"mqtt_topic"`
	MQTTEncoding string `env:"MQTT_ENCODING" envDefault:"JSON" yaml:"mqtt_encoding"`
	MQTTQoS      int    `env:"MQTT_QOS" envDefault:"0" yaml:"mqtt_qos"`

	InstanceID    string        `env:"INSTANCE_ID" yaml:"instance_id"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	StatsInterval time.Duration `env:"STATS_INTERVAL" envDefault:"30s" yaml:"stats_interval"`
}

// LoadConfig parses the environment and then overlays the YAML file at path, if any.
// Keys missing from the file keep their environment or default value.
func LoadConfig(path string) (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return config, fmt.Errorf("parse environment: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	var errs []error
	invalid := func(err error) {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	if c.CaptureInterval <= 0 {
		invalid(fmt.Errorf("CAPTURE_INTERVAL must be positive, got %v", c.CaptureInterval))
	}
	if c.RecordInterval <= 0 {
		invalid(fmt.Errorf("RECORD_INTERVAL must be positive, got %v", c.RecordInterval))
	}
	if c.ChangeInterval <= 0 {
		invalid(fmt.Errorf("CHANGE_INTERVAL must be positive, got %v", c.ChangeInterval))
	}
	if _, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		invalid(fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.StatsInterval <= 0 {
		invalid(fmt.Errorf("STATS_INTERVAL must be positive, got %v", c.StatsInterval))
	}

	switch strings.ToUpper(c.FrameSource) {
	case "SCREEN":
	case "FILES":
		if c.FramesPath == "" {
			invalid(errors.New("FRAMES_PATH is required when FRAME_SOURCE is FILES"))
		}
	default:
		invalid(fmt.Errorf("unknown FRAME_SOURCE %q", c.FrameSource))
	}

	if _, err := extract.ParseAnalysisMode(c.AnalysisMode); err != nil {
		invalid(err)
	}
	if _, err := extract.ParseBiasMode(c.BiasMode); err != nil {
		invalid(err)
	}
	if _, err := extract.ParseRegion(c.Region); err != nil {
		invalid(err)
	}
	if _, err := c.noSignalPolicy(); err != nil {
		invalid(err)
	}
	if err := c.extractOptions().Validate(); err != nil {
		invalid(err)
	}
	if err := c.SmoothingOptions().Validate(); err != nil {
		invalid(err)
	}
	if err := c.LimiterOptions().Validate(); err != nil {
		invalid(err)
	}

	switch strings.ToUpper(c.LightType) {
	case "LIFX":
		if c.MinBrightness < 0 || c.MaxBrightness > 1 || c.MinBrightness > c.MaxBrightness {
			invalid(fmt.Errorf("brightness range %v..%v must lie within 0..1", c.MinBrightness, c.MaxBrightness))
		}
	case "HUE":
	case "MQTT":
		if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
			invalid(fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTTQoS))
		}
		if _, err := mqtt.ParseEncoding(c.MQTTEncoding); err != nil {
			invalid(err)
		}
	default:
		invalid(fmt.Errorf("unknown LIGHT_TYPE %q", c.LightType))
	}

	return errors.Join(errs...)
}

// Analysis is the parsed extraction setup.
type Analysis struct {
	Options extract.Options
	Mode    extract.AnalysisMode
	Bias    extract.BiasMode
	// Region is nil for the full frame.
	Region *extract.Region
}

func (c Config) Analysis() (Analysis, error) {
	mode, err := extract.ParseAnalysisMode(c.AnalysisMode)
	if err != nil {
		return Analysis{}, err
	}
	bias, err := extract.ParseBiasMode(c.BiasMode)
	if err != nil {
		return Analysis{}, err
	}
	region, err := extract.ParseRegion(c.Region)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Options: c.extractOptions(),
		Mode:    mode,
		Bias:    bias,
		Region:  region,
	}, nil
}

func (c Config) extractOptions() extract.Options {
	return extract.Options{
		GrayTolerance:     c.GrayTolerance,
		BiasWeight:        c.BiasWeight,
		GoldenLow:         c.GoldenBandLow,
		GoldenHigh:        c.GoldenBandHigh,
		GoldenDenominator: c.GoldenBandDivisor,
	}
}

func (c Config) SmoothingOptions() smoothing.Options {
	return smoothing.Options{
		ShortSize:      c.ShortWindowSize,
		LongMultiplier: c.LongWindowMultiplier,
		ShortWeight:    c.ShortWeight,
		LongWeight:     c.LongWeight,
	}
}

func (c Config) LimiterOptions() limiter.Options {
	return limiter.Options{
		StepLimit: c.StepLimit,
		Threshold: c.ChangeThreshold,
	}
}

func (c Config) noSignalPolicy() (NoSignalPolicy, error) {
	switch p := NoSignalPolicy(strings.ToUpper(strings.TrimSpace(c.NoSignalPolicy))); p {
	case HoldOnNoSignal, BlackOnNoSignal:
		return p, nil
	case "":
		return HoldOnNoSignal, nil
	}
	return "", fmt.Errorf("unknown NO_SIGNAL_POLICY %q", c.NoSignalPolicy)
}
