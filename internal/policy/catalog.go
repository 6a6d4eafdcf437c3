package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Feature is a gated premium capability.
type Feature string

const (
	FeatureProfessionalPDF Feature = "generate_professional_pdf"
	FeatureClientPortal    Feature = "access_client_portal"
)

// Tier defines the usage ceilings and feature gates of one subscription
// level. Nil ceilings mean unlimited. Static, read-only at runtime.
type Tier struct {
	ID              string    `yaml:"id"`
	NextTier        string    `yaml:"next_tier,omitempty"`
	MaxJobs         *int      `yaml:"max_jobs"`
	PhotosPerJob    *int      `yaml:"photos_per_job"`
	Features        []Feature `yaml:"features,omitempty"`
	PhotosPerMinute *int      `yaml:"photos_per_minute"`
	PhotosPerHour   *int      `yaml:"photos_per_hour"`
	PhotosPerDay    *int      `yaml:"photos_per_day"`
}

// HasFeature reports whether the tier grants a premium capability.
func (t Tier) HasFeature(feature Feature) bool {
	for _, f := range t.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Catalog resolves a tier id to its limits.
type Catalog interface {
	Tier(id string) (Tier, error)
}

// StaticCatalog is an in-memory catalog, either built-in or loaded from a
// YAML tier file.
type StaticCatalog struct {
	tiers map[string]Tier
}

func NewStaticCatalog(tiers ...Tier) *StaticCatalog {
	byID := make(map[string]Tier, len(tiers))
	for _, tier := range tiers {
		byID[tier.ID] = tier
	}
	return &StaticCatalog{tiers: byID}
}

func (c *StaticCatalog) Tier(id string) (Tier, error) {
	tier, ok := c.tiers[id]
	if !ok {
		return Tier{}, fmt.Errorf("unknown tier: %s", id)
	}
	return tier, nil
}

// DefaultCatalog returns the built-in free/pro/business tiers.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(
		Tier{
			ID:              "free",
			NextTier:        "pro",
			MaxJobs:         intPtr(20),
			PhotosPerJob:    intPtr(10),
			PhotosPerMinute: intPtr(5),
			PhotosPerHour:   intPtr(60),
			PhotosPerDay:    intPtr(200),
		},
		Tier{
			ID:              "pro",
			NextTier:        "business",
			MaxJobs:         intPtr(200),
			PhotosPerJob:    intPtr(50),
			Features:        []Feature{FeatureProfessionalPDF},
			PhotosPerMinute: intPtr(15),
			PhotosPerHour:   intPtr(300),
			PhotosPerDay:    intPtr(1500),
		},
		Tier{
			ID:       "business",
			Features: []Feature{FeatureProfessionalPDF, FeatureClientPortal},
		},
	)
}

type catalogFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// LoadCatalog reads a tier catalog from a YAML file.
func LoadCatalog(path string) (*StaticCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tier catalog %s: %w", path, err)
	}
	if len(file.Tiers) == 0 {
		return nil, fmt.Errorf("tier catalog %s defines no tiers", path)
	}
	for _, tier := range file.Tiers {
		if tier.ID == "" {
			return nil, fmt.Errorf("tier catalog %s contains a tier without an id", path)
		}
	}

	return NewStaticCatalog(file.Tiers...), nil
}

func intPtr(v int) *int {
	return &v
}
