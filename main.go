package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/ambient"
	"github.com/scheerer/ambient-video-lights/internal/frames"
	"github.com/scheerer/ambient-video-lights/internal/lights/hue"
	"github.com/scheerer/ambient-video-lights/internal/lights/lifx"
	"github.com/scheerer/ambient-video-lights/internal/lights/mqtt"
	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("main")

func main() {
	defer logger.Sync()

	config, err := ambient.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load configuration")
	}
	if err := logging.SetLevel(config.LogLevel); err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to set log level")
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}

	logger.With(zap.Any("config", config)).Info("Starting ambient video lights")

	logger.Info("Adjust CAPTURE_INTERVAL to change how often frames are analysed. RECORD_INTERVAL and CHANGE_INTERVAL pace the smoothing and the lights.")
	logger.Info("Adjust ANALYSIS_MODE to change the color algorithm. Valid values are: [PURE_AVERAGE, MOST_FREQUENT_COLOR, MOST_FREQUENT_WHOLE_COLOR]")
	logger.Info("Adjust BIAS_MODE to emphasise part of the frame. Valid values are: [NONE, RULE_OF_THIRDS, GOLDEN_RATIO]")
	logger.Info("Set REGION to top,left,bottom,right to analyse only the picture area of the frame.")
	logger.Info("LIGHT_TYPE supports LIFX, HUE and MQTT.")
	logger.Info("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lightService, err := newLightService(ctx, config)
	if err != nil {
		logger.With(zap.Error(err), zap.String("lightType", config.LightType)).Fatal("Failed to create light service")
	}

	source, err := frames.New(frames.Config{
		Kind:         config.FrameSource,
		ScreenNumber: config.ScreenNumber,
		Path:         config.FramesPath,
	})
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to open frame source")
	}

	controller, err := ambient.New(config, lightService)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to create controller")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := controller.Run(ctx, source); err != nil {
			logger.With(zap.Error(err)).Error("Controller stopped")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-shutdown:
	case <-done:
	}
	logger.Info("Shutting down")
	cancel()
	<-done

	lightService.Stop()
	if err := source.Close(); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to close frame source")
	}
}

func newLightService(ctx context.Context, config ambient.Config) (lights.LightService, error) {
	switch strings.ToUpper(config.LightType) {
	case "LIFX":
		return lifx.NewLifx(ctx, lifx.Config{
			GroupName:     config.LightGroupName,
			MinBrightness: config.MinBrightness,
			MaxBrightness: config.MaxBrightness,
		})
	case "HUE":
		return hue.NewHue(ctx, hue.Config{
			BridgeHost:  config.HueBridgeHost,
			Username:    config.HueUsername,
			LightFilter: config.HueLightFilter,
		})
	case "MQTT":
		encoding, err := mqtt.ParseEncoding(config.MQTTEncoding)
		if err != nil {
			return nil, err
		}
		return mqtt.NewMQTT(ctx, mqtt.Config{
			Broker:     config.MQTTBroker,
			Topic:      config.MQTTTopic,
			ClientID:   "ambient-" + config.InstanceID,
			InstanceID: config.InstanceID,
			QoS:        byte(config.MQTTQoS),
			Encoding:   encoding,
		})
	}
	logger.Fatalf("unknown light type: %v", config.LightType)
	return nil, nil
}
