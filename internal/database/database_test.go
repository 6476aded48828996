package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedmix/internal/model"
)

// newTestDB opens a throwaway SQLite file. A file, not :memory:, because
// database/sql pools connections and each in-memory connection would get
// its own empty database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFeedSourceRoundtrip(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateFeedSource(&model.FeedSource{
		Name:         "wire",
		Source:       "https://example.com/rss",
		Interval:     model.IntervalEvery15Minute,
		FieldMapping: map[string]string{"body": "fulltext"},
		StopTags:     []string{"ads", "promo"},
	})
	require.NoError(t, err)

	src, err := db.GetFeedSourceByID(id)
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, "wire", src.Name)
	assert.Equal(t, model.IntervalEvery15Minute, src.Interval)
	assert.Equal(t, map[string]string{"body": "fulltext"}, src.FieldMapping)
	assert.Equal(t, []string{"ads", "promo"}, src.StopTags)
	assert.True(t, src.LastFetched.IsZero())
	assert.False(t, src.Paused)

	fetched := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpdateFeedSourceFetched(id, fetched))

	sources, err := db.GetFeedSources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].LastFetched.Equal(fetched))
}

func TestFeedSourceNilCollections(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateFeedSource(&model.FeedSource{
		Name:     "bare",
		Source:   "https://example.com/rss",
		Interval: model.IntervalEveryHour,
	})
	require.NoError(t, err)

	src, err := db.GetFeedSourceByID(id)
	require.NoError(t, err)
	assert.Empty(t, src.FieldMapping)
	assert.Empty(t, src.StopTags)
}

func TestGetFeedSourceByIDMissing(t *testing.T) {
	db := newTestDB(t)
	src, err := db.GetFeedSourceByID(999)
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestCreatePostWithImageAndTags(t *testing.T) {
	db := newTestDB(t)

	post := model.Post{
		Title:     "Hello",
		Body:      "body",
		ImageURL:  "https://cdn.example.com/a.jpg",
		Tags:      []string{"go", "news", "go"}, // duplicate collapses
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := db.CreatePost(&post)
	require.NoError(t, err)
	require.NotNil(t, post.ImageID)

	got, err := db.GetPostByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, "https://cdn.example.com/a.jpg", got.ImageURL)
	assert.Equal(t, []string{"go", "news"}, got.Tags)
	assert.Equal(t, model.StatusDefault, got.Status)
}

func TestCreatePostReusesTags(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreatePost(&model.Post{Title: "a", Body: "x", Tags: []string{"go"}})
	require.NoError(t, err)
	_, err = db.CreatePost(&model.Post{Title: "b", Body: "y", Tags: []string{"go"}})
	require.NoError(t, err)

	first, err := db.GetOrCreateTag("go")
	require.NoError(t, err)
	second, err := db.GetOrCreateTag("go")
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing tag names must not grow new rows")

	posts, total, err := db.ListPosts(PostListOptions{Tag: "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, posts, 2)
}

func TestCountPostsByTitleAndDate(t *testing.T) {
	db := newTestDB(t)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := db.CreatePost(&model.Post{Title: "Same", Body: "b", CreatedAt: createdAt})
	require.NoError(t, err)

	count, err := db.CountPostsByTitleAndDate("Same", createdAt)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = db.CountPostsByTitleAndDate("Same", createdAt.Add(time.Second))
	require.NoError(t, err)
	assert.Zero(t, count, "the dedup key matches on the exact timestamp")

	count, err = db.CountPostsByTitleAndDate("Other", createdAt)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListPostsVisibilityAndOrder(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		_, err := db.CreatePost(&model.Post{Title: title, Body: "b", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	_, err := db.CreatePost(&model.Post{Title: "hidden", Body: "b", Status: model.StatusHidden, CreatedAt: base})
	require.NoError(t, err)
	_, err = db.CreatePost(&model.Post{Title: "gone", Body: "b", IsDeleted: true, CreatedAt: base})
	require.NoError(t, err)

	posts, total, err := db.ListPosts(PostListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "hidden and deleted posts stay out of the listing")
	require.Len(t, posts, 3)
	assert.Equal(t, "newest", posts[0].Title)
	assert.Equal(t, "oldest", posts[2].Title)
}

func TestListPostsSearch(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreatePost(&model.Post{Title: "Go release", Body: "generics are here"})
	require.NoError(t, err)
	_, err = db.CreatePost(&model.Post{Title: "Weather", Body: "sunny", Description: "about generics too"})
	require.NoError(t, err)
	_, err = db.CreatePost(&model.Post{Title: "Unrelated", Body: "nothing"})
	require.NoError(t, err)

	posts, total, err := db.ListPosts(PostListOptions{Query: "generics"})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "search matches title, body and description")
	assert.Len(t, posts, 2)
}

func TestListPostsPagination(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := db.CreatePost(&model.Post{Title: "p", Body: "b", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	posts, total, err := db.ListPosts(PostListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, posts, 2)

	posts, _, err = db.ListPosts(PostListOptions{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	posts, _, err = db.ListPosts(PostListOptions{Page: 4, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, posts, "pages past the end are empty, not an error")
}

func TestFindMixinCandidates(t *testing.T) {
	db := newTestDB(t)

	postID, err := db.CreatePost(&model.Post{Title: "linked", Body: "b"})
	require.NoError(t, err)

	mustCreate := func(m model.Mixin) int64 {
		id, err := db.CreateMixin(&m)
		require.NoError(t, err)
		return id
	}
	everywhere := mustCreate(model.Mixin{Name: "everywhere", Type: model.MixinText, DisplayOn: model.DisplayAll, PageType: model.PageAll})
	searchOnly := mustCreate(model.Mixin{Name: "search-only", Type: model.MixinText, DisplayOn: model.DisplaySearch, PageType: model.PageAll})
	mainOnly := mustCreate(model.Mixin{Name: "main-only", Type: model.MixinText, DisplayOn: model.DisplayAll, PageType: model.PageMain})
	mustCreate(model.Mixin{Name: "draft", Type: model.MixinText, DisplayOn: model.DisplayAll, PageType: model.PageAll, Draft: true})
	linked := mustCreate(model.Mixin{Name: "linked", Type: model.MixinPost, DisplayOn: model.DisplayAll, PageType: model.PageAll, PostID: &postID})

	ids := func(cands []MixinCandidate) []int64 {
		out := make([]int64, len(cands))
		for i, c := range cands {
			out[i] = c.ID
		}
		return out
	}

	// No exclusions: everything except the draft.
	cands, err := db.FindMixinCandidates(MixinFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{everywhere, searchOnly, mainOnly, linked}, ids(cands))

	// Listing context: search-only mixins are out.
	cands, err = db.FindMixinCandidates(MixinFilter{ExcludeDisplayOn: []model.DisplayOn{model.DisplaySearch}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{everywhere, mainOnly, linked}, ids(cands))

	// Tag context: search-only and main-page mixins are out.
	cands, err = db.FindMixinCandidates(MixinFilter{
		ExcludeDisplayOn: []model.DisplayOn{model.DisplaySearch},
		ExcludePageTypes: []model.PageType{model.PageMain},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{everywhere, linked}, ids(cands))

	// A mixin whose post is already visible is excluded; NULL post_id survives.
	cands, err = db.FindMixinCandidates(MixinFilter{ExcludePostIDs: []int64{postID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{everywhere, searchOnly, mainOnly}, ids(cands))
}

func TestGetMixinsByIDsPriorityOrder(t *testing.T) {
	db := newTestDB(t)

	var ids []int64
	for _, prio := range []int{10, 90, 50} {
		m := model.Mixin{Name: "m", Type: model.MixinText, DisplayOn: model.DisplayAll, PageType: model.PageAll, Priority: prio}
		id, err := db.CreateMixin(&m)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	mixins, err := db.GetMixinsByIDs(ids)
	require.NoError(t, err)
	require.Len(t, mixins, 3)
	assert.Equal(t, 90, mixins[0].Priority)
	assert.Equal(t, 50, mixins[1].Priority)
	assert.Equal(t, 10, mixins[2].Priority)

	none, err := db.GetMixinsByIDs(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMixinImageRoundtrip(t *testing.T) {
	db := newTestDB(t)

	m := model.Mixin{Name: "banner", Type: model.MixinImage, DisplayOn: model.DisplayAll, PageType: model.PageAll, ImageURL: "https://cdn.example.com/banner.jpg"}
	id, err := db.CreateMixin(&m)
	require.NoError(t, err)
	require.NotNil(t, m.ImageID)

	got, err := db.GetMixinsByIDs([]int64{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://cdn.example.com/banner.jpg", got[0].ImageURL)
}

func TestMixinSettingsUpsert(t *testing.T) {
	db := newTestDB(t)

	s, err := db.GetMixinSettings()
	require.NoError(t, err)
	assert.Zero(t, s, "unset settings read as the zero value")

	require.NoError(t, db.SetMixinSettings(model.MixinSettings{MixinPerList: 5, MixinPerSearch: 2}))
	s, err = db.GetMixinSettings()
	require.NoError(t, err)
	assert.Equal(t, model.MixinSettings{MixinPerList: 5, MixinPerSearch: 2}, s)

	require.NoError(t, db.SetMixinSettings(model.MixinSettings{MixinPerList: 7, MixinPerSearch: 1}))
	s, err = db.GetMixinSettings()
	require.NoError(t, err)
	assert.Equal(t, model.MixinSettings{MixinPerList: 7, MixinPerSearch: 1}, s)
}

func TestOrphanedMediaLifecycle(t *testing.T) {
	db := newTestDB(t)

	orphanID, err := db.CreateMedia("stray", "https://cdn.example.com/stray.jpg")
	require.NoError(t, err)

	// Referenced media must never show up as orphans.
	_, err = db.CreatePost(&model.Post{Title: "p", Body: "b", ImageURL: "https://cdn.example.com/post.jpg"})
	require.NoError(t, err)
	_, err = db.CreateMixin(&model.Mixin{Name: "m", Type: model.MixinImage, DisplayOn: model.DisplayAll, PageType: model.PageAll, ImageURL: "https://cdn.example.com/mixin.jpg"})
	require.NoError(t, err)

	orphans, err := db.FindOrphanedMedia()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphanID, orphans[0].ID)
	assert.Equal(t, "https://cdn.example.com/stray.jpg", orphans[0].URL)

	require.NoError(t, db.DeleteMedia([]int64{orphanID}))
	orphans, err = db.FindOrphanedMedia()
	require.NoError(t, err)
	assert.Empty(t, orphans)

	assert.NoError(t, db.DeleteMedia(nil), "empty batches are a no-op")
}
