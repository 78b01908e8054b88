package espo

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuery(t *testing.T) {
	t.Run("nested where clause", func(t *testing.T) {
		encoded := BuildQuery(map[string]any{
			"where": []map[string]any{
				{"type": "equals", "attribute": "cDiscordUserID", "value": "123"},
			},
			"maxSize": 1,
		})

		values, err := url.ParseQuery(encoded)
		require.NoError(t, err)
		assert.Equal(t, "equals", values.Get("where[0][type]"))
		assert.Equal(t, "cDiscordUserID", values.Get("where[0][attribute]"))
		assert.Equal(t, "123", values.Get("where[0][value]"))
		assert.Equal(t, "1", values.Get("maxSize"))
	})

	t.Run("or group with nested list", func(t *testing.T) {
		encoded := BuildQuery(map[string]any{
			"where": []any{
				map[string]any{
					"type": "or",
					"value": []any{
						map[string]any{"type": "equals", "attribute": "type", "value": "Member"},
						map[string]any{"type": "equals", "attribute": "type", "value": "Candidate"},
					},
				},
			},
		})

		values, err := url.ParseQuery(encoded)
		require.NoError(t, err)
		assert.Equal(t, "or", values.Get("where[0][type]"))
		assert.Equal(t, "Member", values.Get("where[0][value][0][value]"))
		assert.Equal(t, "Candidate", values.Get("where[0][value][1][value]"))
	})

	t.Run("scalars", func(t *testing.T) {
		values, err := url.ParseQuery(BuildQuery(map[string]any{
			"flag":  true,
			"ratio": 0.5,
			"none":  nil,
			"list":  []string{"a", "b"},
		}))
		require.NoError(t, err)
		assert.Equal(t, "true", values.Get("flag"))
		assert.Equal(t, "0.5", values.Get("ratio"))
		assert.Equal(t, "", values.Get("none"))
		assert.Equal(t, "b", values.Get("list[1]"))
	})

	t.Run("deterministic", func(t *testing.T) {
		params := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
		assert.Equal(t, BuildQuery(params), BuildQuery(params))
	})
}
