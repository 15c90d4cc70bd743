package config

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog maps user-facing names to the site's search filter codes.
type Catalog struct {
	Areas         map[string]int    `yaml:"areas"`
	PropertyTypes map[string]string `yaml:"property_types"`
	PresetAreaIDs []int             `yaml:"preset_area_ids"`
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		Areas: map[string]int{
			"Williamsburg":    100,
			"Park Slope":      101,
			"Upper East Side": 300,
		},
		PropertyTypes: map[string]string{
			"condo": "D1",
			"coop":  "P1",
			"house": "D3",
		},
		PresetAreaIDs: []int{102, 119, 135, 139, 303, 304, 307, 319, 324, 326, 340, 343, 355},
	}
}

// LoadCatalog overlays the YAML file at path onto the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	catalog := DefaultCatalog()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return catalog, nil
		}
		return nil, err
	}

	var overlay Catalog
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, err
	}
	for name, id := range overlay.Areas {
		catalog.Areas[name] = id
	}
	for name, code := range overlay.PropertyTypes {
		catalog.PropertyTypes[strings.ToLower(name)] = code
	}
	if len(overlay.PresetAreaIDs) > 0 {
		catalog.PresetAreaIDs = overlay.PresetAreaIDs
	}
	return catalog, nil
}

// AreaID looks up a neighborhood name case-insensitively, ignoring
// surrounding whitespace.
func (c *Catalog) AreaID(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if id, ok := c.Areas[name]; ok {
		return id, true
	}
	for n, id := range c.Areas {
		if strings.EqualFold(n, name) {
			return id, true
		}
	}
	return 0, false
}

// AllAreaIDs returns every known area id in ascending order.
func (c *Catalog) AllAreaIDs() []int {
	ids := make([]int, 0, len(c.Areas))
	for _, id := range c.Areas {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Catalog) TypeCode(propertyType string) string {
	return c.PropertyTypes[strings.ToLower(strings.TrimSpace(propertyType))]
}

func (c *Catalog) Neighborhoods() []string {
	names := make([]string, 0, len(c.Areas))
	for name := range c.Areas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
