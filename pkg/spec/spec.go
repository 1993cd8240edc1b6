package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the file name LoadProject looks for.
const ProjectFile = "site.yaml"

// Load reads a project from a YAML file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing project YAML: %w", err)
	}
	if p.CostTable != "" && !filepath.IsAbs(p.CostTable) {
		p.CostTable = filepath.Join(filepath.Dir(path), p.CostTable)
	}
	for code, z := range p.Zoning {
		if z.ZoneCode == "" {
			z.ZoneCode = code
			p.Zoning[code] = z
		}
	}

	return &p, nil
}

// LoadProject loads a project from a project directory.
// It looks for site.yaml in the given directory.
func LoadProject(projectDir string) (*Project, error) {
	return Load(filepath.Join(projectDir, ProjectFile))
}

// UnmarshalYAML decodes a parcel whose geometry is written as an inline
// GeoJSON mapping and keeps the geometry as raw JSON.
func (p *ParcelDef) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID       string `yaml:"id"`
		ZoneCode string `yaml:"zone_code"`
		Selected bool   `yaml:"selected"`
		Geometry any    `yaml:"geometry"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.ZoneCode = raw.ZoneCode
	p.Selected = raw.Selected
	p.Geometry = nil
	if raw.Geometry == nil {
		return nil
	}
	data, err := json.Marshal(raw.Geometry)
	if err != nil {
		return fmt.Errorf("parcel %s geometry: %w", raw.ID, err)
	}
	p.Geometry = data
	return nil
}

// SelectedParcels returns the parcels marked as selected, or every parcel
// when none is marked.
func (p *Project) SelectedParcels() []ParcelDef {
	var out []ParcelDef
	for _, pd := range p.Parcels {
		if pd.Selected {
			out = append(out, pd)
		}
	}
	if len(out) == 0 {
		return p.Parcels
	}
	return out
}
