package hardware

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
)

func TestWaterTankPct(t *testing.T) {
	tests := []struct {
		top, middle, bottom bool
		want                float64
	}{
		{true, true, true, 100.0},
		{true, false, false, 100.0},
		{false, true, true, 66.7},
		{false, true, false, 66.7},
		{false, false, true, 33.3},
		{false, false, false, 0.0},
	}

	for _, tt := range tests {
		if got := WaterTankPct(tt.top, tt.middle, tt.bottom); got != tt.want {
			t.Errorf("WaterTankPct(%v, %v, %v) = %v, want %v", tt.top, tt.middle, tt.bottom, got, tt.want)
		}
	}

	r := Reading{WaterLevelMiddle: true}
	if got := r.WaterTankPct(); got != 66.7 {
		t.Errorf("Reading.WaterTankPct() = %v, want 66.7", got)
	}
}

func TestSimulated_ReadingsWithinRanges(t *testing.T) {
	sim := NewSimulated(WithSeed(7))
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		temp, hum, err := sim.ReadTemperatureHumidity(ctx)
		if err != nil {
			t.Fatalf("ReadTemperatureHumidity() error = %v", err)
		}
		if temp < simTempMin || temp > simTempMax {
			t.Errorf("temperature %v outside [%v, %v]", temp, simTempMin, simTempMax)
		}
		if hum < simHumidityMin || hum > simHumidityMax {
			t.Errorf("humidity %v outside [%v, %v]", hum, simHumidityMin, simHumidityMax)
		}

		soil, err := sim.ReadSoilMoisture(ctx)
		if err != nil {
			t.Fatalf("ReadSoilMoisture() error = %v", err)
		}
		if soil < simSoilMin || soil > simSoilMax {
			t.Errorf("soil %v outside [%v, %v]", soil, simSoilMin, simSoilMax)
		}

		light, err := sim.ReadLightLevel(ctx)
		if err != nil {
			t.Fatalf("ReadLightLevel() error = %v", err)
		}
		if light < simLightMin || light > simLightMax {
			t.Errorf("light %v outside [%v, %v]", light, simLightMin, simLightMax)
		}
	}
}

func TestSimulated_SeedIsReproducible(t *testing.T) {
	ctx := context.Background()
	a := ReadAll(ctx, NewSimulated(WithSeed(99)), nil)
	b := ReadAll(ctx, NewSimulated(WithSeed(99)), nil)

	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	if a.TemperatureC != b.TemperatureC || a.SoilMoisturePct != b.SoilMoisturePct ||
		a.WaterLevelTop != b.WaterLevelTop || a.LightLux != b.LightLux {
		t.Errorf("seeded readings differ: %+v vs %+v", a, b)
	}
}

func TestSimulated_RunPump(t *testing.T) {
	sim := NewSimulated(WithSeed(1))
	ctx := context.Background()

	start := time.Now()
	if err := sim.RunPump(ctx, Pump1, 30*time.Millisecond); err != nil {
		t.Fatalf("RunPump() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("RunPump returned after %v, want >= 30ms", elapsed)
	}
	if sim.PumpActive(Pump1) {
		t.Error("pump 1 still active after RunPump returned")
	}

	runs := sim.PumpRuns()
	if len(runs) != 1 || runs[0].PumpID != Pump1 || !runs[0].Completed {
		t.Errorf("PumpRuns() = %+v", runs)
	}
}

func TestSimulated_RunPumpSafetyCap(t *testing.T) {
	sim := NewSimulated(WithSafetyTimeout(20 * time.Millisecond))

	start := time.Now()
	if err := sim.RunPump(context.Background(), Pump2, time.Hour); err != nil {
		t.Fatalf("RunPump() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("RunPump ran %v, want capped near 20ms", elapsed)
	}
}

func TestSimulated_RunPumpCancelled(t *testing.T) {
	sim := NewSimulated()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sim.RunPump(ctx, Pump1, 5*time.Second)

	var actErr *ActuatorError
	if !errors.As(err, &actErr) {
		t.Fatalf("RunPump() error = %v, want *ActuatorError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunPump() error = %v, want to wrap DeadlineExceeded", err)
	}
	if sim.PumpActive(Pump1) {
		t.Error("pump left active after cancellation")
	}
	if runs := sim.PumpRuns(); len(runs) != 1 || runs[0].Completed {
		t.Errorf("PumpRuns() = %+v, want one incomplete run", runs)
	}
}

func TestSimulated_InvalidPump(t *testing.T) {
	err := NewSimulated().RunPump(context.Background(), 3, time.Millisecond)
	if !errors.Is(err, ErrInvalidPump) {
		t.Errorf("RunPump(3) error = %v, want ErrInvalidPump", err)
	}
}

func TestSimulated_IndicatorAndClose(t *testing.T) {
	sim := NewSimulated()
	ctx := context.Background()

	if err := sim.SetStatusIndicator(ctx, IndicatorWarning); err != nil {
		t.Fatalf("SetStatusIndicator() error = %v", err)
	}
	if got := sim.Indicator(); got != IndicatorWarning {
		t.Errorf("Indicator() = %v, want warning", got)
	}
	if err := sim.SetStatusIndicator(ctx, Indicator("blinking")); !errors.Is(err, ErrInvalidIndicator) {
		t.Errorf("SetStatusIndicator(blinking) error = %v, want ErrInvalidIndicator", err)
	}

	if err := sim.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := sim.Indicator(); got != IndicatorOff {
		t.Errorf("Indicator() after Close = %v, want off", got)
	}

	_, err := sim.ReadSoilMoisture(ctx)
	var sensErr *SensorError
	if !errors.As(err, &sensErr) || !errors.Is(err, ErrClosed) {
		t.Errorf("ReadSoilMoisture() after Close error = %v, want SensorError wrapping ErrClosed", err)
	}
	if err := sim.RunPump(ctx, Pump1, time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("RunPump() after Close error = %v, want ErrClosed", err)
	}
}

// flakyCapability fails the sub-reads named in fail.
type flakyCapability struct {
	*Simulated
	fail map[string]bool
}

func (f flakyCapability) ReadTemperatureHumidity(ctx context.Context) (float64, float64, error) {
	if f.fail[SensorClimate] {
		return 0, 0, &SensorError{Sensor: SensorClimate, Err: errors.New("checksum mismatch")}
	}
	return f.Simulated.ReadTemperatureHumidity(ctx)
}

func (f flakyCapability) ReadLightLevel(ctx context.Context) (float64, error) {
	if f.fail[SensorLight] {
		return 0, &SensorError{Sensor: SensorLight, Err: errors.New("i2c nack")}
	}
	return f.Simulated.ReadLightLevel(ctx)
}

func TestReadAll_DegradesFailedSubReads(t *testing.T) {
	c := flakyCapability{
		Simulated: NewSimulated(WithSeed(3)),
		fail:      map[string]bool{SensorClimate: true, SensorLight: true},
	}

	r := ReadAll(context.Background(), c, nil)

	if r.TemperatureC != 0 || r.HumidityPct != 0 {
		t.Errorf("climate = (%v, %v), want zero defaults", r.TemperatureC, r.HumidityPct)
	}
	if r.LightLux != 0 {
		t.Errorf("light = %v, want 0", r.LightLux)
	}
	if r.SoilMoisturePct < simSoilMin {
		t.Errorf("soil = %v, want a simulated value", r.SoilMoisturePct)
	}
	if !r.Degraded() || len(r.Faults) != 2 {
		t.Errorf("Faults = %v, want climate and light", r.Faults)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestCapDuration(t *testing.T) {
	tests := []struct {
		d, limit, want time.Duration
	}{
		{2 * time.Second, 30 * time.Second, 2 * time.Second},
		{45 * time.Second, 30 * time.Second, 30 * time.Second},
		{-time.Second, 30 * time.Second, 0},
		{time.Minute, 0, time.Minute},
	}
	for _, tt := range tests {
		if got := CapDuration(tt.d, tt.limit); got != tt.want {
			t.Errorf("CapDuration(%v, %v) = %v, want %v", tt.d, tt.limit, got, tt.want)
		}
	}
}

func TestDecodeMCP3008(t *testing.T) {
	tests := []struct {
		reply []byte
		want  int
	}{
		{[]byte{0x00, 0x03, 0xFF}, 1023},
		{[]byte{0x00, 0x00, 0x00}, 0},
		{[]byte{0xFF, 0xFE, 0x00}, 512},
		{[]byte{0x00}, 0},
	}
	for _, tt := range tests {
		if got := DecodeMCP3008(tt.reply); got != tt.want {
			t.Errorf("DecodeMCP3008(%x) = %d, want %d", tt.reply, got, tt.want)
		}
	}

	if got := SoilPercent(1023); got != 100 {
		t.Errorf("SoilPercent(1023) = %v, want 100", got)
	}
	if got := SoilPercent(0); got != 0 {
		t.Errorf("SoilPercent(0) = %v, want 0", got)
	}
	if got := SoilPercent(5000); got != 100 {
		t.Errorf("SoilPercent(5000) = %v, want clamped 100", got)
	}
}

func TestReadMilli(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in_temp_input")
	if err := os.WriteFile(path, []byte("23400\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := readMilli(path)
	if err != nil {
		t.Fatalf("readMilli() error = %v", err)
	}
	if got != 23.4 {
		t.Errorf("readMilli() = %v, want 23.4", got)
	}

	if _, err := readMilli(filepath.Join(dir, "missing")); err == nil {
		t.Error("readMilli(missing) error = nil")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Default().Hardware

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New(simulated) error = %v", err)
	}
	if c.Mode() != ModeSimulated {
		t.Errorf("Mode() = %v, want simulated", c.Mode())
	}

	cfg.Mode = "quantum"
	_, err = New(cfg)
	var initErr *InitializationError
	if !errors.As(err, &initErr) || !errors.Is(err, ErrInvalidMode) {
		t.Errorf("New(quantum) error = %v, want InitializationError wrapping ErrInvalidMode", err)
	}
}
