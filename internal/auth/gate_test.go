package auth

import (
	"testing"

	"github.com/layersite/layersite/internal/document"
	"github.com/layersite/layersite/internal/schema"
	"github.com/stretchr/testify/require"
)

func layerDoc(t *testing.T, owners []string) document.Document {
	t.Helper()
	reg, err := schema.Load()
	require.NoError(t, err)
	ks, err := document.NewKindSet(reg)
	require.NoError(t, err)
	d := document.New(ks.Layers)
	if owners != nil {
		d.SetOwners(owners)
	}
	return d
}

func TestGate_AdminAlwaysMutates(t *testing.T) {
	g := NewGate([]string{"root"}, "@")
	doc := layerDoc(t, []string{"somebody-else"})
	require.True(t, g.CanMutate(doc, &Principal{Login: "root"}))
}

func TestGate_EmptyOwnerListIsOpen(t *testing.T) {
	g := NewGate(nil, "@")
	doc := layerDoc(t, nil)
	require.True(t, g.CanMutate(doc, &Principal{Login: "anyone"}))
	require.True(t, g.CanMutate(doc, nil))
}

func TestGate_OwnerMatch(t *testing.T) {
	g := NewGate(nil, "@")
	doc := layerDoc(t, []string{"alice", "bob"})
	require.True(t, g.CanMutate(doc, &Principal{Login: "bob"}))
	require.False(t, g.CanMutate(doc, &Principal{Login: "carol"}))
	require.False(t, g.CanMutate(doc, nil))
}

func TestGate_GroupEntriesNeverMatchLogins(t *testing.T) {
	g := NewGate(nil, "@")
	doc := layerDoc(t, []string{"@neuro-team"})
	// the group label is descriptive: it grants nothing, even to a literal match
	require.False(t, g.CanMutate(doc, &Principal{Login: "@neuro-team"}))
	require.False(t, g.CanMutate(doc, &Principal{Login: "neuro-team"}))
}

func TestGate_IsAdmin(t *testing.T) {
	g := NewGate([]string{" root ", "", "ops"}, "")
	require.True(t, g.IsAdmin(&Principal{Login: "root"}))
	require.True(t, g.IsAdmin(&Principal{Login: "ops"}))
	require.False(t, g.IsAdmin(&Principal{Login: "alice"}))
	require.False(t, g.IsAdmin(nil))
}
