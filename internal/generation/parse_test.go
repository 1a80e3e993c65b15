package generation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsim-server/internal/generation"
	"medsim-server/internal/model"
)

func TestExtractJSONObject(t *testing.T) {
	t.Run("Plain JSON object", func(t *testing.T) {
		raw, err := generation.ExtractJSONObject(`{"title":"Pulpitis"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"Pulpitis"}`, string(raw))
	})

	t.Run("JSON wrapped in code fences", func(t *testing.T) {
		text := "```json\n{\"title\": \"Pulpitis\", \"steps\": []}\n```"
		raw, err := generation.ExtractJSONObject(text)
		require.NoError(t, err)
		assert.JSONEq(t, `{"title": "Pulpitis", "steps": []}`, string(raw))
	})

	t.Run("JSON surrounded by prose", func(t *testing.T) {
		text := "Here is the requested scenario:\n```json\n{\"summary\": \"acute case\"}\n```\nLet me know if you need changes."
		raw, err := generation.ExtractJSONObject(text)
		require.NoError(t, err)
		assert.JSONEq(t, `{"summary": "acute case"}`, string(raw))
	})

	t.Run("Empty response is a parse failure", func(t *testing.T) {
		_, err := generation.ExtractJSONObject("   \n  ")
		require.Error(t, err)
		assert.Equal(t, model.FailureParse, model.ClassifyError(err))
	})

	t.Run("No object present is a parse failure", func(t *testing.T) {
		_, err := generation.ExtractJSONObject("I could not produce the data you asked for.")
		require.Error(t, err)
		assert.Equal(t, model.FailureParse, model.ClassifyError(err))
	})

	t.Run("Malformed JSON is a parse failure", func(t *testing.T) {
		_, err := generation.ExtractJSONObject(`{"title": "Pulpitis",}`)
		require.Error(t, err)
		assert.Equal(t, model.FailureParse, model.ClassifyError(err))
	})
}

func TestUnmarshalResponse(t *testing.T) {
	var out struct {
		Prompts []string `json:"prompts"`
	}
	err := generation.UnmarshalResponse("```json\n{\"prompts\": [\"a\", \"b\"]}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out.Prompts)

	err = generation.UnmarshalResponse(`{"prompts": "not-a-list"}`, &out)
	require.Error(t, err)
	assert.Equal(t, model.FailureParse, model.ClassifyError(err))
}
