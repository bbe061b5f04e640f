package document

import (
	"testing"

	"github.com/layersite/layersite/internal/schema"
	"github.com/stretchr/testify/require"
)

func testKinds(t *testing.T) *KindSet {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	ks, err := NewKindSet(reg)
	require.NoError(t, err)
	return ks
}

func TestNew_Defaults(t *testing.T) {
	ks := testKinds(t)
	d := New(ks.Layers)
	require.Equal(t, "", d.Fields["id"])
	require.Equal(t, "", d.Fields["name"])
	require.Equal(t, []any{}, d.Fields["owner"])
	require.NoError(t, d.Validate())
}

func TestSkeleton(t *testing.T) {
	ks := testKinds(t)
	d := Skeleton(ks.Layers, "l1")
	require.Equal(t, "l1", d.ID())
	require.True(t, d.IsSkeleton())
}

func TestIsSkeleton_FalseWhenPopulated(t *testing.T) {
	ks := testKinds(t)
	d := Skeleton(ks.Layers, "l1")
	d.Fields["name"] = "populated"
	require.False(t, d.IsSkeleton())
}

func TestFromStored_OverlaysDefaults(t *testing.T) {
	ks := testKinds(t)
	// stored record predates the summary field
	d := FromStored(ks.Layers, map[string]any{"id": "l1", "name": "old"})
	require.Equal(t, "old", d.Fields["name"])
	require.Equal(t, "", d.Fields["summary"])
	require.NoError(t, d.Validate())
}

func TestMerge_RetainsUnmentionedFields(t *testing.T) {
	ks := testKinds(t)
	base := FromStored(ks.Layers, map[string]any{
		"id": "l1", "name": "keep-me", "summary": "old summary",
	})
	merged := base.Merge(map[string]any{"summary": "new summary"})
	require.Equal(t, "keep-me", merged.Fields["name"])
	require.Equal(t, "new summary", merged.Fields["summary"])
	// the original is untouched
	require.Equal(t, "old summary", base.Fields["summary"])
}

func TestSet_RollsBackOnViolation(t *testing.T) {
	ks := testKinds(t)
	d := FromStored(ks.Layers, map[string]any{"id": "l1", "name": "good"})
	err := d.Set("name", 42)
	require.Error(t, err)
	require.Equal(t, "good", d.Fields["name"])
}

func TestOwners_BSONShape(t *testing.T) {
	ks := testKinds(t)
	d := New(ks.Layers)
	d.Fields["owner"] = []any{"alice", "bob"}
	require.Equal(t, []string{"alice", "bob"}, d.Owners())

	d.SetOwners([]string{"carol"})
	require.Equal(t, []string{"carol"}, d.Owners())
}

func TestMetricsKind_NoPK(t *testing.T) {
	ks := testKinds(t)
	require.Equal(t, "", ks.Metrics.PK)
	d := New(ks.Metrics)
	require.Equal(t, "", d.ID())
	d.SetID("ignored")
	require.Equal(t, "", d.ID())
}

func TestByName(t *testing.T) {
	ks := testKinds(t)
	require.Same(t, ks.Layers, ks.ByName("layer"))
	require.Same(t, ks.Repos, ks.ByName("repo"))
	require.Same(t, ks.Metrics, ks.ByName("metric"))
	require.Nil(t, ks.ByName("widget"))
}
