// Package catalog holds the aircraft type catalog: the static mapping from
// aircraft type to the exact part counts it needs. A catalog is built once at
// process start and never mutated afterwards.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/rl1809/aircraft-assembly/internal/core/domain"
)

const (
	AircraftTB2       domain.AircraftType = "TB2"
	AircraftTB3       domain.AircraftType = "TB3"
	AircraftAkinci    domain.AircraftType = "AKINCI"
	AircraftKizilelma domain.AircraftType = "KIZILELMA"
)

// DefaultVersion is the format version of the built-in catalog.
const DefaultVersion = "1.0.0"

// supportedFormat is the range of catalog file versions this build reads.
var supportedFormat = mustConstraint("^1.0.0")

type Catalog struct {
	version      *semver.Version
	requirements map[domain.AircraftType]domain.Requirement
}

// File is the on-disk JSON shape of a catalog.
type File struct {
	Version  string                    `json:"version"`
	Aircraft map[string]map[string]int `json:"aircraft"`
}

// New validates reqs and freezes them into a catalog.
func New(version string, reqs map[domain.AircraftType]domain.Requirement) (*Catalog, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse version %q: %w", version, err)
	}
	if !supportedFormat.Check(v) {
		return nil, fmt.Errorf("catalog: unsupported format version %s (want %s)", v, supportedFormat)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("catalog: no aircraft types defined")
	}

	frozen := make(map[domain.AircraftType]domain.Requirement, len(reqs))
	for at, req := range reqs {
		if at == "" {
			return nil, fmt.Errorf("catalog: empty aircraft type name")
		}
		if len(req) == 0 {
			return nil, fmt.Errorf("catalog: %s has no required parts", at)
		}
		for pt, n := range req {
			if !pt.Valid() {
				return nil, fmt.Errorf("catalog: %s: %w", at, domain.UnknownPartType(pt))
			}
			if n <= 0 {
				return nil, fmt.Errorf("catalog: %s requires %d %s parts, counts must be positive", at, n, pt)
			}
		}
		frozen[at] = req.Clone()
	}
	return &Catalog{version: v, requirements: frozen}, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultVersion, map[domain.AircraftType]domain.Requirement{
		AircraftTB2: {
			domain.PartTypeWing: 2, domain.PartTypeBody: 1, domain.PartTypeTail: 1, domain.PartTypeAvionics: 1,
		},
		AircraftTB3: {
			domain.PartTypeWing: 2, domain.PartTypeBody: 1, domain.PartTypeTail: 1, domain.PartTypeAvionics: 2,
		},
		AircraftAkinci: {
			domain.PartTypeWing: 2, domain.PartTypeBody: 1, domain.PartTypeTail: 2, domain.PartTypeAvionics: 2,
		},
		AircraftKizilelma: {
			domain.PartTypeWing: 4, domain.PartTypeBody: 1, domain.PartTypeTail: 1, domain.PartTypeAvionics: 2,
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	reqs := make(map[domain.AircraftType]domain.Requirement, len(f.Aircraft))
	for name, parts := range f.Aircraft {
		at := domain.NormalizeAircraftType(name)
		if _, dup := reqs[at]; dup {
			return nil, fmt.Errorf("catalog: aircraft type %s defined twice", at)
		}
		req := make(domain.Requirement, len(parts))
		for rawType, n := range parts {
			pt, err := domain.ParsePartType(rawType)
			if err != nil {
				return nil, fmt.Errorf("catalog: %s: %w", at, err)
			}
			if _, dup := req[pt]; dup {
				return nil, fmt.Errorf("catalog: %s lists %s twice", at, pt)
			}
			req[pt] = n
		}
		reqs[at] = req
	}
	return New(f.Version, reqs)
}

// RequirementsFor returns a copy of the requirement for t.
func (c *Catalog) RequirementsFor(t domain.AircraftType) (domain.Requirement, error) {
	req, ok := c.requirements[t]
	if !ok {
		return nil, domain.UnknownAircraftType(t)
	}
	return req.Clone(), nil
}

// AircraftTypes lists the registered types in name order.
func (c *Catalog) AircraftTypes() []domain.AircraftType {
	types := make([]domain.AircraftType, 0, len(c.requirements))
	for t := range c.requirements {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (c *Catalog) Version() string {
	return c.version.String()
}

func mustConstraint(raw string) *semver.Constraints {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}
