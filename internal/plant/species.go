package plant

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed species.yaml
var speciesYAML []byte

// Species holds the watering defaults for a kind of plant.
type Species struct {
	Name                  string  `yaml:"name" json:"name"`
	WaterAmountML         float64 `yaml:"water_amount_ml" json:"water_amount_ml"`
	WateringFrequencyDays int     `yaml:"watering_frequency_days" json:"watering_frequency_days"`
}

var (
	catalogOnce sync.Once
	catalog     []Species
	catalogErr  error
)

func loadCatalog() ([]Species, error) {
	catalogOnce.Do(func() {
		if err := yaml.Unmarshal(speciesYAML, &catalog); err != nil {
			catalogErr = fmt.Errorf("parsing species catalog: %w", err)
		}
	})
	return catalog, catalogErr
}

// Catalog returns the built-in species list in catalog order.
func Catalog() []Species {
	list, err := loadCatalog()
	if err != nil {
		return nil
	}
	out := make([]Species, len(list))
	copy(out, list)
	return out
}

// LookupSpecies finds a species by name, ignoring case and surrounding space.
func LookupSpecies(name string) (Species, bool) {
	list, err := loadCatalog()
	if err != nil {
		return Species{}, false
	}
	name = strings.TrimSpace(name)
	for _, s := range list {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Species{}, false
}

// Defaults fills zero watering fields of p from the species of the same
// name. Explicit values are kept.
func (s Species) Defaults(p *Plant) {
	if p.WaterAmountML == 0 {
		p.WaterAmountML = s.WaterAmountML
	}
	if p.WateringFrequencyDays == 0 {
		p.WateringFrequencyDays = s.WateringFrequencyDays
	}
}
