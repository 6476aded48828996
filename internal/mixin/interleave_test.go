package mixin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmix/internal/model"
)

func makePosts(n int) []model.Post {
	posts := make([]model.Post, n)
	for i := range posts {
		posts[i] = model.Post{ID: int64(i + 1)}
	}
	return posts
}

func makeMixins(n int) []model.Mixin {
	mixins := make([]model.Mixin, n)
	for i := range mixins {
		mixins[i] = model.Mixin{ID: int64(100 + i)}
	}
	return mixins
}

func entryTypes(entries []Entry) []string {
	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return types
}

func TestInterleaveSpacing(t *testing.T) {
	// 10 posts, 2 mixins: step = ceil(10/3) = 4, insertions at positions
	// 4 and 8 of the growing sequence.
	entries := Interleave(makePosts(10), makeMixins(2))
	require.Len(t, entries, 12)

	assert.Equal(t, []string{
		EntryPost, EntryPost, EntryPost, EntryPost,
		EntryMixin,
		EntryPost, EntryPost, EntryPost,
		EntryMixin,
		EntryPost, EntryPost, EntryPost,
	}, entryTypes(entries))

	assert.Equal(t, int64(100), entries[4].Mixin.ID)
	assert.Equal(t, int64(101), entries[8].Mixin.ID)
}

func TestInterleavePreservesPostOrder(t *testing.T) {
	entries := Interleave(makePosts(5), makeMixins(2))

	var postIDs []int64
	for _, e := range entries {
		if e.Type == EntryPost {
			postIDs = append(postIDs, e.Post.ID)
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, postIDs)
}

func TestInterleaveNoMixins(t *testing.T) {
	entries := Interleave(makePosts(3), nil)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, EntryPost, e.Type)
		assert.Equal(t, int64(i+1), e.Post.ID)
	}
}

func TestInterleaveNoPosts(t *testing.T) {
	entries := Interleave(nil, makeMixins(2))
	require.Len(t, entries, 2)
	assert.Equal(t, []string{EntryMixin, EntryMixin}, entryTypes(entries))
}

func TestInterleaveMoreMixinsThanPosts(t *testing.T) {
	entries := Interleave(makePosts(1), makeMixins(3))
	require.Len(t, entries, 4)
	assert.Equal(t, EntryPost, entries[0].Type)
	for _, e := range entries[1:] {
		assert.Equal(t, EntryMixin, e.Type)
	}
}

func TestInterleaveEmpty(t *testing.T) {
	assert.Empty(t, Interleave(nil, nil))
}
