package hardware

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// enableSettle is how long the MOSFET enable line is held before a pump
	// pin goes high.
	enableSettle = 100 * time.Millisecond

	mcp3008Speed   = 1 * physic.MegaHertz
	mcp3008MaxRaw  = 1023.0
	tslCommand     = 0x80
	tslControl     = 0x00
	tslPowerOn     = 0x03
	tslData0Low    = 0x0C
	climateRetries = 3
)

// PhysicalConfig wires a Physical capability to the board.
type PhysicalConfig struct {
	Pump1      string
	Pump2      string
	PumpEnable string
	StatusLED  string
	WarningLED string

	WaterTop    string
	WaterMiddle string
	WaterBottom string

	// SPIPort and I2CBus are periph registry names; empty selects the first bus.
	SPIPort      string
	SoilChannel  int
	I2CBus       string
	LightAddress uint16

	// IIODevice is the sysfs directory of the DHT driver.
	IIODevice string

	SafetyTimeout time.Duration
}

// Physical drives a Raspberry Pi through periph.io.
//
// Soil moisture comes from an MCP3008 ADC on SPI, light from a TSL2561 on
// I2C, and temperature/humidity from the kernel's DHT IIO driver.
type Physical struct {
	cfg PhysicalConfig

	pumpMu sync.Mutex // one pump at a time; they share the enable line
	mu     sync.Mutex
	closed bool

	pumps      map[int]gpio.PinIO
	enable     gpio.PinIO
	statusLED  gpio.PinIO
	warningLED gpio.PinIO
	levels     [3]gpio.PinIO

	spiPort spi.PortCloser
	adc     spi.Conn
	i2cBus  i2c.BusCloser
	light   *i2c.Dev
}

// NewPhysical initialises the host drivers and claims every pin and bus.
// Any failure is an *InitializationError and leaves nothing claimed.
func NewPhysical(cfg PhysicalConfig) (*Physical, error) {
	if cfg.SafetyTimeout <= 0 {
		cfg.SafetyTimeout = DefaultSafetyTimeout
	}

	if _, err := host.Init(); err != nil {
		return nil, &InitializationError{Component: "host", Err: err}
	}

	p := &Physical{cfg: cfg, pumps: make(map[int]gpio.PinIO, 2)}

	var err error
	outputs := []struct {
		name string
		dst  *gpio.PinIO
	}{
		{cfg.PumpEnable, &p.enable},
		{cfg.StatusLED, &p.statusLED},
		{cfg.WarningLED, &p.warningLED},
	}
	for _, o := range outputs {
		if *o.dst, err = claimOutput(o.name); err != nil {
			p.release()
			return nil, err
		}
	}
	for id, name := range map[int]string{Pump1: cfg.Pump1, Pump2: cfg.Pump2} {
		pin, err := claimOutput(name)
		if err != nil {
			p.release()
			return nil, err
		}
		p.pumps[id] = pin
	}
	for i, name := range []string{cfg.WaterTop, cfg.WaterMiddle, cfg.WaterBottom} {
		pin := gpioreg.ByName(name)
		if pin == nil {
			p.release()
			return nil, &InitializationError{Component: "gpio " + name, Err: errors.New("pin not found")}
		}
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			p.release()
			return nil, &InitializationError{Component: "gpio " + name, Err: err}
		}
		p.levels[i] = pin
	}

	if p.spiPort, err = spireg.Open(cfg.SPIPort); err != nil {
		p.release()
		return nil, &InitializationError{Component: "spi", Err: err}
	}
	if p.adc, err = p.spiPort.Connect(mcp3008Speed, spi.Mode0, 8); err != nil {
		p.release()
		return nil, &InitializationError{Component: "spi", Err: err}
	}

	if p.i2cBus, err = i2creg.Open(cfg.I2CBus); err != nil {
		p.release()
		return nil, &InitializationError{Component: "i2c", Err: err}
	}
	p.light = &i2c.Dev{Bus: p.i2cBus, Addr: cfg.LightAddress}
	if err := p.light.Tx([]byte{tslCommand | tslControl, tslPowerOn}, nil); err != nil {
		p.release()
		return nil, &InitializationError{Component: "light sensor", Err: err}
	}

	return p, nil
}

func claimOutput(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, &InitializationError{Component: "gpio " + name, Err: errors.New("pin not found")}
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, &InitializationError{Component: "gpio " + name, Err: err}
	}
	return pin, nil
}

func (p *Physical) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ReadTemperatureHumidity reads the DHT IIO channels. The kernel driver
// returns EIO on a checksum miss, so the read is retried a few times.
func (p *Physical) ReadTemperatureHumidity(ctx context.Context) (float64, float64, error) {
	if p.isClosed() {
		return 0, 0, &SensorError{Sensor: SensorClimate, Err: ErrClosed}
	}

	var temp, hum float64
	op := func() error {
		var err error
		if temp, err = readMilli(filepath.Join(p.cfg.IIODevice, "in_temp_input")); err != nil {
			return err
		}
		hum, err = readMilli(filepath.Join(p.cfg.IIODevice, "in_humidityrelative_input"))
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), climateRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return 0, 0, &SensorError{Sensor: SensorClimate, Err: err}
	}
	return temp, hum, nil
}

// readMilli parses an IIO *_input file, which reports thousandths.
func readMilli(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v / 1000, nil
}

// ReadSoilMoisture samples one single-ended MCP3008 channel.
func (p *Physical) ReadSoilMoisture(context.Context) (float64, error) {
	if p.isClosed() {
		return 0, &SensorError{Sensor: SensorSoil, Err: ErrClosed}
	}
	w := []byte{0x01, byte(0x80 | (p.cfg.SoilChannel&0x07)<<4), 0x00}
	r := make([]byte, len(w))
	if err := p.adc.Tx(w, r); err != nil {
		return 0, &SensorError{Sensor: SensorSoil, Err: err}
	}
	return SoilPercent(DecodeMCP3008(r)), nil
}

// DecodeMCP3008 extracts the 10-bit sample from a 3-byte MCP3008 reply.
func DecodeMCP3008(r []byte) int {
	if len(r) < 3 {
		return 0
	}
	return int(r[1]&0x03)<<8 | int(r[2])
}

// SoilPercent scales a 10-bit ADC sample to a clamped percentage.
func SoilPercent(raw int) float64 {
	pct := float64(raw) / mcp3008MaxRaw * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// ReadLightLevel reads the broadband channel of the light sensor.
func (p *Physical) ReadLightLevel(context.Context) (float64, error) {
	if p.isClosed() {
		return 0, &SensorError{Sensor: SensorLight, Err: ErrClosed}
	}
	buf := make([]byte, 2)
	if err := p.light.Tx([]byte{tslCommand | tslData0Low}, buf); err != nil {
		return 0, &SensorError{Sensor: SensorLight, Err: err}
	}
	return float64(binary.LittleEndian.Uint16(buf)), nil
}

// ReadWaterLevels reads the float switches. A high level means water is present.
func (p *Physical) ReadWaterLevels(context.Context) (bool, bool, bool, error) {
	if p.isClosed() {
		return false, false, false, &SensorError{Sensor: SensorWaterLevels, Err: ErrClosed}
	}
	return p.levels[0].Read() == gpio.High,
		p.levels[1].Read() == gpio.High,
		p.levels[2].Read() == gpio.High,
		nil
}

// RunPump raises the MOSFET enable line, waits for it to settle, then runs
// the pump. Both lines are driven low on every exit path.
func (p *Physical) RunPump(ctx context.Context, pumpID int, duration time.Duration) error {
	pin, ok := p.pumps[pumpID]
	if !ok {
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: ErrInvalidPump}
	}
	if p.isClosed() {
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: ErrClosed}
	}

	p.pumpMu.Lock()
	defer p.pumpMu.Unlock()

	fail := func(err error) error {
		p.pumpOff(pin)
		return &ActuatorError{Actuator: "pump", PumpID: pumpID, Err: err}
	}

	if err := p.enable.Out(gpio.High); err != nil {
		return fail(err)
	}
	if err := sleep(ctx, enableSettle); err != nil {
		return fail(err)
	}
	if err := pin.Out(gpio.High); err != nil {
		return fail(err)
	}
	if err := sleep(ctx, CapDuration(duration, p.cfg.SafetyTimeout)); err != nil {
		return fail(err)
	}

	var errs []error
	if err := pin.Out(gpio.Low); err != nil {
		errs = append(errs, err)
	}
	if err := p.enable.Out(gpio.Low); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fail(err)
	}
	return nil
}

func (p *Physical) pumpOff(pin gpio.PinIO) {
	_ = pin.Out(gpio.Low)      //nolint:errcheck // Best effort on the failure path
	_ = p.enable.Out(gpio.Low) //nolint:errcheck // Best effort on the failure path
}

func (p *Physical) SetStatusIndicator(_ context.Context, state Indicator) error {
	var status, warning gpio.Level
	switch state {
	case IndicatorNormal:
		status = gpio.High
	case IndicatorWarning:
		warning = gpio.High
	case IndicatorOff:
	default:
		return &ActuatorError{Actuator: "indicator", Err: ErrInvalidIndicator}
	}
	if p.isClosed() {
		return &ActuatorError{Actuator: "indicator", Err: ErrClosed}
	}
	if err := p.statusLED.Out(status); err != nil {
		return &ActuatorError{Actuator: "indicator", Err: err}
	}
	if err := p.warningLED.Out(warning); err != nil {
		return &ActuatorError{Actuator: "indicator", Err: err}
	}
	return nil
}

func (p *Physical) Mode() Mode { return ModePhysical }

// Close drives every output low and releases the buses.
func (p *Physical) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pumpMu.Lock()
	defer p.pumpMu.Unlock()
	return p.release()
}

func (p *Physical) release() error {
	var errs []error
	for _, pin := range []gpio.PinIO{p.pumps[Pump1], p.pumps[Pump2], p.enable, p.statusLED, p.warningLED} {
		if pin == nil {
			continue
		}
		if err := pin.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pin.Name(), err))
		}
	}
	if p.spiPort != nil {
		if err := p.spiPort.Close(); err != nil {
			errs = append(errs, fmt.Errorf("spi: %w", err))
		}
	}
	if p.i2cBus != nil {
		if err := p.i2cBus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("i2c: %w", err))
		}
	}
	return errors.Join(errs...)
}
