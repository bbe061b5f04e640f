package document

import (
	"testing"

	"github.com/layersite/layersite/internal/schema"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestTranslate_FieldToken(t *testing.T) {
	ks := testKinds(t)
	q, err := Translate(ks.Layers, []string{"name:neuro"})
	require.NoError(t, err)
	require.Equal(t, bson.M{"name": bson.M{"$regex": "neuro", "$options": "i"}}, q)
}

func TestTranslate_FreeTextConcatenated(t *testing.T) {
	ks := testKinds(t)
	q, err := Translate(ks.Layers, []string{"spiking", "networks"})
	require.NoError(t, err)
	require.Equal(t, bson.M{"$text": bson.M{"$search": "spiking networks"}}, q)
}

func TestTranslate_MixedTokensCombineWithAnd(t *testing.T) {
	ks := testKinds(t)
	q, err := Translate(ks.Layers, []string{"name:foo", "bar"})
	require.NoError(t, err)
	require.Len(t, q, 2)
	require.Equal(t, bson.M{"$regex": "foo", "$options": "i"}, q["name"])
	require.Equal(t, bson.M{"$search": "bar"}, q["$text"])
}

func TestTranslate_UndeclaredFieldExactMatch(t *testing.T) {
	ks := testKinds(t)
	q, err := Translate(ks.Layers, []string{"custom:value"})
	require.NoError(t, err)
	require.Equal(t, bson.M{"custom": bson.M{"$eq": "value"}}, q)
}

func TestTranslate_NumberField(t *testing.T) {
	k := &Kind{Name: "sample", Schema: &schema.Schema{
		Name: "sample",
		Properties: map[string]schema.Property{
			"count": {Type: "number"},
		},
	}}
	q, err := Translate(k, []string{"count:42"})
	require.NoError(t, err)
	require.Equal(t, bson.M{"count": bson.M{"$eq": 42.0}}, q)

	_, err = Translate(k, []string{"count:many"})
	var te *TranslateError
	require.ErrorAs(t, err, &te)
	require.Equal(t, "count", te.Field)
	require.Equal(t, "count:many", te.Token)
}

func TestTranslate_EmptyTokens(t *testing.T) {
	ks := testKinds(t)
	q, err := Translate(ks.Layers, nil)
	require.NoError(t, err)
	require.Equal(t, bson.M{}, q)
}
