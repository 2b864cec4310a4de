package lights

import (
	"context"
	"fmt"
	"time"
)

type Color struct {
	Red   uint8 `json:"r" msgpack:"r"`
	Green uint8 `json:"g" msgpack:"g"`
	Blue  uint8 `json:"b" msgpack:"b"`
}

func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.Red, c.Green, c.Blue)
}

// LightService is the sink for colour commands. SetColorWithDuration reports transport
// failures through the service's own logging; callers only learn that a command was issued.
type LightService interface {
	Start(ctx context.Context)
	Stop()
	LightCount() int
	SetColorWithDuration(ctx context.Context, color Color, duration time.Duration)
}
