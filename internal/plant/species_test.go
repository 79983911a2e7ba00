package plant

import "testing"

func TestCatalog(t *testing.T) {
	list := Catalog()
	if len(list) != 10 {
		t.Fatalf("len(Catalog()) = %d, want 10", len(list))
	}
	seen := make(map[string]bool)
	for _, s := range list {
		if seen[s.Name] {
			t.Errorf("duplicate species %q", s.Name)
		}
		seen[s.Name] = true
		if s.WaterAmountML <= 0 || s.WateringFrequencyDays < MinFrequency {
			t.Errorf("species %q has invalid defaults: %+v", s.Name, s)
		}
	}

	list[0].Name = "changed"
	if Catalog()[0].Name == "changed" {
		t.Error("Catalog() returned shared slice")
	}
}

func TestLookupSpecies(t *testing.T) {
	tests := []struct {
		name      string
		wantFound bool
		wantML    float64
		wantDays  int
	}{
		{"Aloe Vera", true, 150, 21},
		{"  zz plant ", true, 200, 21},
		{"Chinese Evergreen", true, 250, 10},
		{"Triffid", false, 0, 0},
		{"", false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := LookupSpecies(tt.name)
			if ok != tt.wantFound {
				t.Fatalf("LookupSpecies(%q) found = %v, want %v", tt.name, ok, tt.wantFound)
			}
			if s.WaterAmountML != tt.wantML || s.WateringFrequencyDays != tt.wantDays {
				t.Errorf("LookupSpecies(%q) = %+v", tt.name, s)
			}
		})
	}
}

func TestSpecies_DefaultsKeepExplicitValues(t *testing.T) {
	s, _ := LookupSpecies("Monstera")

	p := Plant{Name: "Monstera", WaterAmountML: 120.5}
	s.Defaults(&p)
	if p.WaterAmountML != 120.5 {
		t.Errorf("WaterAmountML = %v, want explicit 120.5", p.WaterAmountML)
	}
	if p.WateringFrequencyDays != 7 {
		t.Errorf("WateringFrequencyDays = %d, want catalog 7", p.WateringFrequencyDays)
	}
}
