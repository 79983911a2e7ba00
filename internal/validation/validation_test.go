package validation

import (
	"testing"

	"github.com/nerrad567/planter-core/internal/hardware"
)

func healthy() hardware.Reading {
	return hardware.Reading{
		TemperatureC:    22,
		HumidityPct:     50,
		SoilMoisturePct: 45,
		LightLux:        300,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *hardware.Reading)
		field     func(Result) Metric
		want      Status
		wantCheck bool
	}{
		{"all healthy", func(*hardware.Reading) {}, func(r Result) Metric { return r.SoilMoisture }, StatusOK, false},
		{"soil at floor", func(r *hardware.Reading) { r.SoilMoisturePct = 20 }, func(r Result) Metric { return r.SoilMoisture }, StatusOK, false},
		{"soil at ceiling", func(r *hardware.Reading) { r.SoilMoisturePct = 70 }, func(r Result) Metric { return r.SoilMoisture }, StatusOK, false},
		{"soil dry", func(r *hardware.Reading) { r.SoilMoisturePct = 19.9 }, func(r Result) Metric { return r.SoilMoisture }, StatusCheck, true},
		{"soil soaked", func(r *hardware.Reading) { r.SoilMoisturePct = 70.1 }, func(r Result) Metric { return r.SoilMoisture }, StatusCheck, true},
		{"temperature at bounds", func(r *hardware.Reading) { r.TemperatureC = 15 }, func(r Result) Metric { return r.Temperature }, StatusOK, false},
		{"temperature hot", func(r *hardware.Reading) { r.TemperatureC = 31 }, func(r Result) Metric { return r.Temperature }, StatusCheck, true},
		{"humidity low", func(r *hardware.Reading) { r.HumidityPct = 29 }, func(r Result) Metric { return r.Humidity }, StatusCheck, true},
		{"humidity at ceiling", func(r *hardware.Reading) { r.HumidityPct = 80 }, func(r Result) Metric { return r.Humidity }, StatusOK, false},
		{"light dark", func(r *hardware.Reading) { r.LightLux = 10 }, func(r Result) Metric { return r.Light }, StatusCheck, true},
		{"light at ceiling", func(r *hardware.Reading) { r.LightLux = 500 }, func(r Result) Metric { return r.Light }, StatusOK, false},
		{"light bright", func(r *hardware.Reading) { r.LightLux = 550 }, func(r Result) Metric { return r.Light }, StatusCheck, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := healthy()
			tt.mutate(&r)
			res := Classify(r)

			if got := tt.field(res).Status; got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
			if got := res.AnyCheck(); got != tt.wantCheck {
				t.Errorf("AnyCheck() = %v, want %v", got, tt.wantCheck)
			}
		})
	}
}

func TestClassify_PreservesValues(t *testing.T) {
	r := healthy()
	res := Classify(r)
	if res.SoilMoisture.Value != r.SoilMoisturePct || res.Light.Value != r.LightLux {
		t.Errorf("Classify() values = %+v, want copied from reading", res)
	}
}

func TestClassify_IsPure(t *testing.T) {
	r := healthy()
	r.SoilMoisturePct = 5
	if Classify(r) != Classify(r) {
		t.Error("Classify() not deterministic")
	}
}

func TestMoistureCritical(t *testing.T) {
	r := healthy()
	r.SoilMoisturePct = 90
	if Classify(r).MoistureCritical() {
		t.Error("MoistureCritical() = true for soaked soil")
	}
	r.SoilMoisturePct = 10
	if !Classify(r).MoistureCritical() {
		t.Error("MoistureCritical() = false for dry soil")
	}
	r.SoilMoisturePct = 0
	if !Classify(r).MoistureCritical() {
		t.Error("MoistureCritical() = false for zero reading")
	}
}

func TestClassifyPlants(t *testing.T) {
	r := healthy()
	r.LightLux = 5

	got := ClassifyPlants(r, []int{0, 2})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, pos := range []int{0, 2} {
		if got[pos].Light.Status != StatusCheck {
			t.Errorf("position %d light = %v, want CHECK", pos, got[pos].Light.Status)
		}
	}
	if _, ok := got[1]; ok {
		t.Error("unexpected entry for position 1")
	}
}
