package source

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered set of configured sources with their fetchers
// built once up front. Read-only after construction.
type Catalog struct {
	descriptors []Descriptor
	fetchers    map[string]Fetcher
}

// DefaultDescriptors is the built-in source catalog.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "Microsoft Buildings",
			Kind:        KindTiled,
			Description: "High-quality building footprints worldwide",
			IndexURL:    "https://minedbuildings.z5.web.core.windows.net/global-buildings/dataset-links.csv",
		},
		{
			Name:        "OpenStreetMap Roads",
			Kind:        KindOverpass,
			Description: "Road networks from OpenStreetMap",
			Tags:        map[string][]string{"highway": nil},
		},
		{
			Name:        "OpenStreetMap Buildings",
			Kind:        KindOverpass,
			Description: "Building footprints from OpenStreetMap",
			Tags:        map[string][]string{"building": nil},
		},
		{
			Name:        "OpenStreetMap Waterways",
			Kind:        KindOverpass,
			Description: "Rivers, streams, and water features",
			Tags:        map[string][]string{"waterway": nil},
		},
		{
			Name:        "OpenStreetMap Parks",
			Kind:        KindOverpass,
			Description: "Parks and recreational areas",
			Tags:        map[string][]string{"leisure": {"park", "garden", "recreation_ground"}},
		},
		{
			Name:        "OpenStreetMap Amenities",
			Kind:        KindOverpass,
			Description: "Points of interest and amenities",
			Tags:        map[string][]string{"amenity": nil},
		},
		{
			Name:        "Natural Earth Countries",
			Kind:        KindStatic,
			Description: "Country boundaries (Natural Earth)",
		},
	}
}

// NewCatalog builds fetchers for the given descriptors.
func NewCatalog(descriptors []Descriptor, opts Options) (*Catalog, error) {
	c := &Catalog{fetchers: make(map[string]Fetcher, len(descriptors))}
	for _, d := range descriptors {
		if _, exists := c.fetchers[d.Name]; exists {
			return nil, fmt.Errorf("duplicate source %q", d.Name)
		}
		f, err := NewFetcher(d, opts)
		if err != nil {
			return nil, err
		}
		c.descriptors = append(c.descriptors, d)
		c.fetchers[d.Name] = f
	}
	return c, nil
}

// LoadCatalog reads descriptors from a YAML file, falling back to the
// built-in catalog when path is empty.
func LoadCatalog(path string, opts Options) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultDescriptors(), opts)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source catalog: %w", err)
	}
	var file struct {
		Sources []Descriptor `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing source catalog: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("source catalog %s defines no sources", path)
	}
	return NewCatalog(file.Sources, opts)
}

// Descriptors returns the catalog entries in configuration order.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Fetcher returns the fetcher for a source name.
func (c *Catalog) Fetcher(name string) (Fetcher, bool) {
	f, ok := c.fetchers[name]
	return f, ok
}

// Names returns the source names in configuration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.descriptors))
	for i, d := range c.descriptors {
		names[i] = d.Name
	}
	return names
}
