package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_BuiltinKinds(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"layer", "metric", "repo"}, reg.Kinds())

	layer := reg.Get("layer")
	require.NotNil(t, layer)
	require.Contains(t, layer.Properties, "id")
	require.Contains(t, layer.Properties, "repo")
	require.Nil(t, reg.Get("nope"))
}

func TestSchema_TextFields(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	layer := reg.Get("layer")
	// owner is an array, everything else on layer is text
	require.Equal(t, []string{"id", "name", "repo", "summary"}, layer.TextFields())
}

func TestProperty_DefaultValue(t *testing.T) {
	require.Equal(t, "", Property{Type: "string"}.DefaultValue())
	require.Equal(t, "", Property{}.DefaultValue())
	require.Nil(t, Property{Type: "number"}.DefaultValue())

	withDefault := Property{Type: "array", Default: []any{}}
	require.Equal(t, []any{}, withDefault.DefaultValue())
}

func TestValidate_CompleteRecord(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	layer := reg.Get("layer")

	fields := map[string]any{
		"id":      "l1",
		"name":    "Layer One",
		"summary": "",
		"repo":    "https://github.com/org/layer-one",
		"owner":   []any{"alice"},
	}
	require.NoError(t, layer.Validate(fields))
}

func TestValidate_MissingField(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	layer := reg.Get("layer")

	err = layer.Validate(map[string]any{"id": "l1"})
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
	require.NotEmpty(t, v.Field)
}

func TestValidate_TypeMismatchNamesField(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	layer := reg.Get("layer")

	fields := map[string]any{
		"id":      "l1",
		"name":    42,
		"summary": "",
		"repo":    "",
		"owner":   []any{},
	}
	err = layer.Validate(fields)
	var v *Violation
	require.ErrorAs(t, err, &v)
	require.Equal(t, "name", v.Field)
}

func TestValidate_UndeclaredFieldsIgnored(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	layer := reg.Get("layer")

	fields := map[string]any{
		"id":           "l1",
		"name":         "n",
		"summary":      "",
		"repo":         "",
		"owner":        []any{},
		"lastmodified": "whatever shape",
	}
	require.NoError(t, layer.Validate(fields))
}

func TestValidate_DateTimeFormat(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	metric := reg.Get("metric")

	ok := map[string]any{
		"timestamp":      "2026-08-28T10:00:00Z",
		"action":         "update",
		"kind":           "layer",
		"item":           "l1",
		"username":       "alice",
		"remote_address": "10.0.0.1",
	}
	require.NoError(t, metric.Validate(ok))

	ok["timestamp"] = "yesterday"
	err = metric.Validate(ok)
	var v *Violation
	require.ErrorAs(t, err, &v)
	require.Equal(t, "timestamp", v.Field)
}
