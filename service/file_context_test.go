package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ludo-technologies/jsinspect/domain"
)

func TestFileContexts_GetCreatesOnce(t *testing.T) {
	r := NewFileContexts()

	var wg sync.WaitGroup
	got := make([]*FileContext, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("a.js")
		}(i)
	}
	wg.Wait()

	for _, fc := range got {
		assert.Same(t, got[0], fc)
	}
	assert.Equal(t, 1, r.Len())

	fc, ok := r.Lookup("a.js")
	assert.True(t, ok)
	assert.Same(t, got[0], fc)

	_, ok = r.Lookup("b.js")
	assert.False(t, ok)
}

func TestFileContexts_VersionsAreMonotonic(t *testing.T) {
	r := NewFileContexts()
	fc := r.Get("a.js")
	assert.Equal(t, uint64(0), fc.Version())

	v1 := r.Bump("a.js")
	assert.Equal(t, v1, fc.Version())

	removed := r.Remove("a.js")
	assert.Greater(t, removed, v1)
	assert.Equal(t, 0, r.Len())

	recreated := r.Get("a.js")
	assert.NotSame(t, fc, recreated)
	assert.GreaterOrEqual(t, recreated.Version(), removed, "a recreated file starts at or above its invalidation floor")

	other := r.Bump("b.js")
	assert.Greater(t, other, removed)
}

func TestFileContext_Publish(t *testing.T) {
	fc := newFileContext(0)
	vs := []domain.Violation{
		{RuleID: "no-var", BeginLine: 1},
		{RuleID: "eqeqeq", BeginLine: 2},
	}

	assert.True(t, fc.Publish(0, vs))
	assert.False(t, fc.Publish(0, vs), "identical violations are not republished")

	reordered := []domain.Violation{vs[1], vs[0]}
	assert.False(t, fc.Publish(0, reordered), "order across rules does not matter")

	assert.True(t, fc.Publish(0, vs[:1]))

	fc.ResetPublished()
	assert.True(t, fc.Publish(0, vs[:1]))
}

func TestFileContext_PublishEmpty(t *testing.T) {
	fc := newFileContext(0)
	assert.True(t, fc.Publish(0, nil), "first publish of an empty result is a change")
	assert.False(t, fc.Publish(0, nil))
}

func TestFileContexts_BumpResetsPublished(t *testing.T) {
	r := NewFileContexts()
	fc := r.Get("a.js")
	vs := []domain.Violation{{RuleID: "no-var"}}
	fc.Publish(0, vs)

	v := r.Bump("a.js")
	assert.True(t, fc.Publish(v, vs))

	r.ResetAllPublished()
	assert.True(t, fc.Publish(v, vs))
}

func TestFileContext_PublishRejectsOlderVersion(t *testing.T) {
	r := NewFileContexts()
	fc := r.Get("a.js")
	before := fc.Version()
	vs := []domain.Violation{{RuleID: "no-var"}}

	after := r.Bump("a.js")
	assert.False(t, fc.Publish(before, vs), "result of replaced content is dropped")
	assert.True(t, fc.Publish(after, nil))
}
