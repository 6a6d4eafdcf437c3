package policy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCatalog struct{}

func (failingCatalog) Tier(id string) (Tier, error) {
	return Tier{}, fmt.Errorf("policy source unreachable")
}

func freeTierEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(DefaultCatalog(), NewPhotoRateLimiter(), nil)
}

func TestCanPerformCreateJobLimits(t *testing.T) {
	engine := freeTierEngine(t)

	// At the ceiling: denied with a high-urgency advisory.
	decision := engine.CanPerform("free", ActionCreateJob, UsageContext{JobCount: 20})
	assert.False(t, decision.Allowed)
	require.NotNil(t, decision.Advisory)
	assert.Equal(t, UrgencyHigh, decision.Advisory.Urgency)
	assert.Equal(t, "pro", decision.Advisory.SuggestedTier)

	// One under the ceiling and past 80%: allowed with a medium advisory.
	decision = engine.CanPerform("free", ActionCreateJob, UsageContext{JobCount: 19})
	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Advisory)
	assert.Equal(t, UrgencyMedium, decision.Advisory.Urgency)

	// Well below the threshold: allowed, no advisory.
	decision = engine.CanPerform("free", ActionCreateJob, UsageContext{JobCount: 5})
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Advisory)
}

func TestCanPerformAdvisoryThreshold(t *testing.T) {
	engine := freeTierEngine(t)

	// 80% of max_jobs=20 is 16.
	decision := engine.CanPerform("free", ActionCreateJob, UsageContext{JobCount: 16})
	assert.True(t, decision.Allowed)
	require.NotNil(t, decision.Advisory)

	decision = engine.CanPerform("free", ActionCreateJob, UsageContext{JobCount: 15})
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Advisory)
}

func TestCanPerformUnlimitedTier(t *testing.T) {
	engine := freeTierEngine(t)

	for _, count := range []int{0, 20, 100000} {
		decision := engine.CanPerform("business", ActionCreateJob, UsageContext{JobCount: count})
		assert.True(t, decision.Allowed, "job count %d", count)
		assert.Nil(t, decision.Advisory, "job count %d", count)
	}
}

func TestCanPerformPhotoLimit(t *testing.T) {
	engine := freeTierEngine(t)

	decision := engine.CanPerform("free", ActionAddPhoto, UsageContext{PhotosInJob: 10})
	assert.False(t, decision.Allowed)

	decision = engine.CanPerform("free", ActionAddPhoto, UsageContext{PhotosInJob: 3})
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Advisory)
}

func TestCanPerformFeatureGates(t *testing.T) {
	engine := freeTierEngine(t)

	decision := engine.CanPerform("free", Action(FeatureProfessionalPDF), UsageContext{})
	assert.False(t, decision.Allowed)
	require.NotNil(t, decision.Advisory)
	assert.Equal(t, UrgencyHigh, decision.Advisory.Urgency)

	decision = engine.CanPerform("pro", Action(FeatureProfessionalPDF), UsageContext{})
	assert.True(t, decision.Allowed)

	decision = engine.CanPerform("pro", Action(FeatureClientPortal), UsageContext{})
	assert.False(t, decision.Allowed)

	decision = engine.CanPerform("business", Action(FeatureClientPortal), UsageContext{})
	assert.True(t, decision.Allowed)
}

func TestCanPerformFailsOpenOnLookupError(t *testing.T) {
	engine := NewEngine(failingCatalog{}, NewPhotoRateLimiter(), nil)

	for _, action := range []Action{ActionCreateJob, ActionAddPhoto, Action(FeatureClientPortal)} {
		decision := engine.CanPerform("free", action, UsageContext{JobCount: 1 << 20, PhotosInJob: 1 << 20})
		assert.True(t, decision.Allowed, "action %s must fail open", action)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := t.TempDir() + "/tiers.yaml"
	content := `
tiers:
  - id: free
    next_tier: pro
    max_jobs: 3
    photos_per_job: 2
    photos_per_minute: 5
  - id: pro
    features: [generate_professional_pdf]
`
	require.NoError(t, writeFile(path, content))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)

	free, err := catalog.Tier("free")
	require.NoError(t, err)
	require.NotNil(t, free.MaxJobs)
	assert.Equal(t, 3, *free.MaxJobs)
	assert.Nil(t, free.PhotosPerHour)

	pro, err := catalog.Tier("pro")
	require.NoError(t, err)
	assert.Nil(t, pro.MaxJobs)
	assert.True(t, pro.HasFeature(FeatureProfessionalPDF))

	_, err = catalog.Tier("enterprise")
	assert.Error(t, err)
}

func TestLoadCatalogRejectsEmpty(t *testing.T) {
	path := t.TempDir() + "/tiers.yaml"
	require.NoError(t, writeFile(path, "tiers: []\n"))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
