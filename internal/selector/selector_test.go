package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/selector"
)

func sampleManifest() map[string]any {
	return map[string]any{
		"entities": []any{
			map[string]any{
				"id": "entity.job",
				"fields": []any{
					map[string]any{"id": "job.title"},
					map[string]any{"id": "job.status"},
					map[string]any{"id": "job.priority"},
				},
			},
		},
	}
}

func TestResolveSelectorPath(t *testing.T) {
	doc := sampleManifest()
	resolved, err := selector.Resolve(doc, "/entities/@[id=entity.job]/fields/@[id=job.status]/id")
	require.NoError(t, err)
	assert.Equal(t, "/entities/0/fields/1/id", resolved)
}

func TestResolveNotFound(t *testing.T) {
	doc := sampleManifest()
	_, err := selector.Resolve(doc, "/entities/@[id=entity.missing]/fields")
	require.Error(t, err)
	selErr, ok := err.(*selector.Error)
	require.True(t, ok)
	assert.Equal(t, selector.CodeSelectorNotFound, selErr.Code)
}

func TestResolveNotUnique(t *testing.T) {
	doc := map[string]any{
		"items": []any{
			map[string]any{"id": "x"},
			map[string]any{"id": "x"},
		},
	}
	_, err := selector.Resolve(doc, "/items/@[id=x]")
	require.Error(t, err)
	selErr, ok := err.(*selector.Error)
	require.True(t, ok)
	assert.Equal(t, selector.CodeSelectorNotUnique, selErr.Code)
}

func TestResolveTypeError(t *testing.T) {
	doc := map[string]any{"items": map[string]any{"not": "an array"}}
	_, err := selector.Resolve(doc, "/items/@[id=x]")
	require.Error(t, err)
	selErr, ok := err.(*selector.Error)
	require.True(t, ok)
	assert.Equal(t, selector.CodeSelectorTypeError, selErr.Code)
}

func TestResolveIdempotentAfterResolution(t *testing.T) {
	doc := sampleManifest()
	resolved, err := selector.Resolve(doc, "/entities/@[id=entity.job]/fields/@[id=job.status]")
	require.NoError(t, err)
	resolvedAgain, err := selector.Resolve(doc, resolved)
	require.NoError(t, err)
	assert.Equal(t, resolved, resolvedAgain)

	val, err := selector.Get(doc, resolved)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "job.status"}, val)
}

func TestContainsNumericSegment(t *testing.T) {
	assert.True(t, selector.ContainsNumericSegment("/entities/0/fields"))
	assert.False(t, selector.ContainsNumericSegment("/entities/@[id=entity.job]/fields"))
	assert.False(t, selector.ContainsNumericSegment(""))
}
