package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/planter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

// Command names under planter/{site}/command/.
const CommandWater = "water"

// ErrInvalidCommand is returned for a command payload that cannot be parsed.
var ErrInvalidCommand = errors.New("reporter: invalid command")

// Subscriber is the part of the MQTT client the command listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Waterer runs a manual watering.
type Waterer interface {
	WaterNow(ctx context.Context, position int) (scheduler.Outcome, error)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type waterCommand struct {
	Position *int `json:"position"`
}

// SubscribeCommands listens for water commands and runs them through w.
// ctx bounds every watering started from a command; the pump run happens
// off the MQTT delivery goroutine.
func SubscribeCommands(ctx context.Context, sub Subscriber, topics mqtt.Topics, qos byte, w Waterer, logger Logger) error {
	if logger == nil {
		logger = noopLogger{}
	}
	handler := func(topic string, payload []byte) error {
		pos, err := parseWater(payload)
		if err != nil {
			return err
		}
		go func() {
			o, err := w.WaterNow(ctx, pos)
			if err != nil {
				logger.Warn("mqtt water command failed", "topic", topic, "position", pos, "error", err)
				return
			}
			logger.Info("mqtt water command done", "plant", o.Plant.Name, "position", pos)
		}()
		return nil
	}
	return sub.Subscribe(topics.Command(CommandWater), qos, handler)
}

func parseWater(payload []byte) (int, error) {
	var cmd waterCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Position == nil {
		return 0, fmt.Errorf("%w: position is required", ErrInvalidCommand)
	}
	if *cmd.Position < 0 {
		return 0, fmt.Errorf("%w: position must not be negative", ErrInvalidCommand)
	}
	return *cmd.Position, nil
}
