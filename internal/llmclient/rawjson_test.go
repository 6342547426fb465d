package llmclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productsPayload struct {
	Products []struct {
		Name     string  `json:"name"`
		PriceRRC float64 `json:"price_rrc"`
	} `json:"products"`
}

func TestExtractJSON_PlainObject(t *testing.T) {
	var out productsPayload
	err := ExtractJSON(`{"products":[{"name":"Widget","price_rrc":9.99}]}`, &out)
	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Widget", out.Products[0].Name)
}

func TestExtractJSON_FencedWithLanguageTag(t *testing.T) {
	text := "Here is the result:\n```json\n{\"products\":[{\"name\":\"Gadget\",\"price_rrc\":5}]}\n```\nThanks"
	var out productsPayload
	err := ExtractJSON(text, &out)
	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Gadget", out.Products[0].Name)
}

func TestExtractJSON_BareArray(t *testing.T) {
	var out []map[string]any
	err := ExtractJSON(`prose before [{"name":"A"},{"name":"B"}] prose after`, &out)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestExtractJSON_NoJSONFound(t *testing.T) {
	var out productsPayload
	err := ExtractJSON("no json here at all", &out)
	assert.Error(t, err)
}

func TestExtractJSON_NestedBracesInStrings(t *testing.T) {
	text := `{"products":[{"name":"Brace { in name }","price_rrc":1}]}`
	var out productsPayload
	err := ExtractJSON(text, &out)
	require.NoError(t, err)
	require.Len(t, out.Products, 1)
	assert.Equal(t, "Brace { in name }", out.Products[0].Name)
}
