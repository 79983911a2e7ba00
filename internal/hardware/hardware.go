package hardware

import (
	"fmt"
	"time"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
)

// DefaultSafetyTimeout caps a single pump run when none is configured.
const DefaultSafetyTimeout = 30 * time.Second

// New builds the capability variant named by cfg.Mode. It is called once at
// startup; the rest of the system only sees the returned Capability.
func New(cfg config.HardwareConfig) (Capability, error) {
	safety := time.Duration(cfg.SafetyTimeout) * time.Second

	switch Mode(cfg.Mode) {
	case ModeSimulated:
		opts := []SimulatedOption{WithSafetyTimeout(safety)}
		if cfg.Seed != 0 {
			opts = append(opts, WithSeed(cfg.Seed))
		}
		return NewSimulated(opts...), nil

	case ModePhysical:
		return NewPhysical(PhysicalConfig{
			Pump1:         cfg.Pins.Pump1,
			Pump2:         cfg.Pins.Pump2,
			PumpEnable:    cfg.Pins.PumpEnable,
			StatusLED:     cfg.Pins.StatusLED,
			WarningLED:    cfg.Pins.WarningLED,
			WaterTop:      cfg.Pins.WaterTop,
			WaterMiddle:   cfg.Pins.WaterMiddle,
			WaterBottom:   cfg.Pins.WaterBottom,
			SPIPort:       cfg.Soil.SPIPort,
			SoilChannel:   cfg.Soil.Channel,
			I2CBus:        cfg.Light.I2CBus,
			LightAddress:  cfg.Light.Address,
			IIODevice:     cfg.Climate.IIODevice,
			SafetyTimeout: safety,
		})

	default:
		return nil, &InitializationError{
			Component: "capability",
			Err:       fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode),
		}
	}
}
