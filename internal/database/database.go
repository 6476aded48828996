// Package database provides SQLite storage for the content store.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feedmix/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return "SQLite"
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS feed_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		source TEXT NOT NULL,
		poll_interval TEXT NOT NULL,
		field_mapping TEXT NOT NULL DEFAULT '{}',
		stop_tags TEXT NOT NULL DEFAULT '[]',
		last_fetched DATETIME,
		is_paused INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT DEFAULT '',
		url TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		description TEXT DEFAULT '',
		image_id INTEGER REFERENCES media(id),
		created_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'DEFAULT',
		is_deleted INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS post_tags (
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(post_id, tag_id)
	);
	CREATE TABLE IF NOT EXISTS mixins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		text TEXT DEFAULT '',
		link TEXT DEFAULT '',
		text_for_link TEXT DEFAULT '',
		display_on TEXT NOT NULL DEFAULT 'all',
		page_type TEXT NOT NULL DEFAULT 'all',
		priority INTEGER NOT NULL DEFAULT 50,
		regex TEXT DEFAULT '',
		draft INTEGER DEFAULT 0,
		post_id INTEGER REFERENCES posts(id),
		image_id INTEGER REFERENCES media(id)
	);
	CREATE TABLE IF NOT EXISTS mixin_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		mixin_per_list INTEGER NOT NULL,
		mixin_per_search INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_posts_title ON posts(title);
	CREATE INDEX IF NOT EXISTS idx_post_tags_tag_id ON post_tags(tag_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// --- Feed Source Methods ---

// GetFeedSources returns all configured feed sources.
func (db *DB) GetFeedSources() ([]model.FeedSource, error) {
	rows, err := db.conn.Query(`SELECT id, name, source, poll_interval, field_mapping, stop_tags, last_fetched, is_paused FROM feed_sources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []model.FeedSource
	for rows.Next() {
		src, err := scanFeedSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// GetFeedSourceByID returns one feed source or nil if absent.
func (db *DB) GetFeedSourceByID(id int64) (*model.FeedSource, error) {
	row := db.conn.QueryRow(`SELECT id, name, source, poll_interval, field_mapping, stop_tags, last_fetched, is_paused FROM feed_sources WHERE id = ?`, id)
	src, err := scanFeedSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return src, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedSource(row rowScanner) (*model.FeedSource, error) {
	var src model.FeedSource
	var mapping, stopTags string
	var lastFetched sql.NullTime
	if err := row.Scan(&src.ID, &src.Name, &src.Source, &src.Interval, &mapping, &stopTags, &lastFetched, &src.Paused); err != nil {
		return nil, err
	}
	if lastFetched.Valid {
		src.LastFetched = lastFetched.Time
	}
	if err := json.Unmarshal([]byte(mapping), &src.FieldMapping); err != nil {
		return nil, fmt.Errorf("decode field mapping: %w", err)
	}
	if err := json.Unmarshal([]byte(stopTags), &src.StopTags); err != nil {
		return nil, fmt.Errorf("decode stop tags: %w", err)
	}
	return &src, nil
}

// CreateFeedSource adds a feed source. Returns the ID.
func (db *DB) CreateFeedSource(src *model.FeedSource) (int64, error) {
	mapping, stopTags, err := encodeSourceJSON(src)
	if err != nil {
		return 0, err
	}
	res, err := db.conn.Exec(`INSERT INTO feed_sources (name, source, poll_interval, field_mapping, stop_tags, is_paused) VALUES (?, ?, ?, ?, ?, ?)`,
		src.Name, src.Source, string(src.Interval), mapping, stopTags, src.Paused)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func encodeSourceJSON(src *model.FeedSource) (string, string, error) {
	fm := src.FieldMapping
	if fm == nil {
		fm = map[string]string{}
	}
	st := src.StopTags
	if st == nil {
		st = []string{}
	}
	mapping, err := json.Marshal(fm)
	if err != nil {
		return "", "", fmt.Errorf("encode field mapping: %w", err)
	}
	stopTags, err := json.Marshal(st)
	if err != nil {
		return "", "", fmt.Errorf("encode stop tags: %w", err)
	}
	return string(mapping), string(stopTags), nil
}

// UpdateFeedSourceFetched updates the last_fetched timestamp for a source.
func (db *DB) UpdateFeedSourceFetched(id int64, t time.Time) error {
	_, err := db.conn.Exec("UPDATE feed_sources SET last_fetched = ? WHERE id = ?", t, id)
	return err
}

// --- Post Methods ---

// CreatePost inserts a post together with its image media row and tag links.
// Tags are looked up by name first; only missing names create new tag rows.
func (db *DB) CreatePost(post *model.Post) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var imageID *int64
	if post.ImageURL != "" {
		res, err := tx.Exec("INSERT INTO media (name, url) VALUES ('', ?)", post.ImageURL)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		imageID = &id
	}

	createdAt := post.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := post.Status
	if status == "" {
		status = model.StatusDefault
	}

	res, err := tx.Exec(`INSERT INTO posts (title, body, description, image_id, created_at, status, is_deleted) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.Title, post.Body, post.Description, imageID, createdAt, string(status), post.IsDeleted)
	if err != nil {
		return 0, err
	}
	postID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(post.Tags))
	for _, name := range post.Tags {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tagID, err := getOrCreateTagTx(tx, name)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec("INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING", postID, tagID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	post.ID = postID
	post.ImageID = imageID
	return postID, nil
}

func getOrCreateTagTx(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.Exec("INSERT INTO tags (name) VALUES (?)", name)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	return id, err
}

// GetPostByID returns one post with tags and image URL, or nil if absent.
func (db *DB) GetPostByID(id int64) (*model.Post, error) {
	row := db.conn.QueryRow(`
		SELECT p.id, p.title, p.body, p.description, p.image_id, m.url, p.created_at, p.status, p.is_deleted
		FROM posts p LEFT JOIN media m ON m.id = p.image_id
		WHERE p.id = ?`, id)
	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadPostTags(post); err != nil {
		return nil, err
	}
	return post, nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	var p model.Post
	var imageURL sql.NullString
	var createdAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Title, &p.Body, &p.Description, &p.ImageID, &imageURL, &createdAt, &p.Status, &p.IsDeleted); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		p.ImageURL = imageURL.String
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return &p, nil
}

func (db *DB) loadPostTags(post *model.Post) error {
	rows, err := db.conn.Query(`
		SELECT t.name FROM tags t
		JOIN post_tags pt ON pt.tag_id = t.id
		WHERE pt.post_id = ? ORDER BY t.name`, post.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	post.Tags = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		post.Tags = append(post.Tags, name)
	}
	return rows.Err()
}

// CountPostsByTitleAndDate counts posts matching exactly on (title, created_at).
// This is the ingestion dedup key.
func (db *DB) CountPostsByTitleAndDate(title string, createdAt time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM posts WHERE title = ? AND created_at = ?", title, createdAt).Scan(&count)
	return count, err
}

// ListPosts returns one page of visible posts plus the total match count.
func (db *DB) ListPosts(opts PostListOptions) ([]model.Post, int, error) {
	where := "p.is_deleted = 0 AND p.status = 'DEFAULT'"
	var args []any
	if opts.Query != "" {
		where += " AND (p.title LIKE ? OR p.body LIKE ? OR p.description LIKE ?)"
		like := "%" + opts.Query + "%"
		args = append(args, like, like, like)
	}
	if opts.Tag != "" {
		where += ` AND p.id IN (SELECT pt.post_id FROM post_tags pt JOIN tags t ON t.id = pt.tag_id WHERE t.name = ?)`
		args = append(args, opts.Tag)
	}

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM posts p WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}

	query := `
		SELECT p.id, p.title, p.body, p.description, p.image_id, m.url, p.created_at, p.status, p.is_deleted
		FROM posts p LEFT JOIN media m ON m.id = p.image_id
		WHERE ` + where + `
		ORDER BY p.created_at DESC
		LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range posts {
		if err := db.loadPostTags(&posts[i]); err != nil {
			return nil, 0, err
		}
	}
	return posts, total, nil
}

// --- Tag Methods ---

// GetOrCreateTag looks up a tag by name, creating it if missing.
func (db *DB) GetOrCreateTag(name string) (int64, error) {
	var id int64
	err := db.conn.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := db.conn.Exec("INSERT INTO tags (name) VALUES (?)", name)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	return id, err
}

// --- Mixin Methods ---

// CreateMixin adds a mixin. Returns the ID.
func (db *DB) CreateMixin(m *model.Mixin) (int64, error) {
	var imageID *int64
	if m.ImageURL != "" {
		res, err := db.conn.Exec("INSERT INTO media (name, url) VALUES ('', ?)", m.ImageURL)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		imageID = &id
	}
	res, err := db.conn.Exec(`INSERT INTO mixins (name, type, text, link, text_for_link, display_on, page_type, priority, regex, draft, post_id, image_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, string(m.Type), m.Text, m.Link, m.TextForLink, string(m.DisplayOn), string(m.PageType), m.Priority, m.Regex, m.Draft, m.PostID, imageID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	m.ID = id
	m.ImageID = imageID
	return id, nil
}

// FindMixinCandidates returns the ids and regexes of non-draft mixins
// surviving the context exclusions.
func (db *DB) FindMixinCandidates(f MixinFilter) ([]MixinCandidate, error) {
	query := "SELECT id, regex FROM mixins WHERE draft = 0"
	var args []any
	for _, d := range f.ExcludeDisplayOn {
		query += " AND display_on != ?"
		args = append(args, string(d))
	}
	for _, p := range f.ExcludePageTypes {
		query += " AND page_type != ?"
		args = append(args, string(p))
	}
	if len(f.ExcludePostIDs) > 0 {
		query += " AND (post_id IS NULL OR post_id NOT IN (" + placeholders(len(f.ExcludePostIDs)) + "))"
		for _, id := range f.ExcludePostIDs {
			args = append(args, id)
		}
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cands []MixinCandidate
	for rows.Next() {
		var c MixinCandidate
		if err := rows.Scan(&c.ID, &c.Regex); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// GetMixinsByIDs returns full mixin records ordered by priority descending.
func (db *DB) GetMixinsByIDs(ids []int64) ([]model.Mixin, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT x.id, x.name, x.type, x.text, x.link, x.text_for_link, x.display_on, x.page_type,
		       x.priority, x.regex, x.draft, x.post_id, x.image_id, m.url
		FROM mixins x LEFT JOIN media m ON m.id = x.image_id
		WHERE x.id IN (` + placeholders(len(ids)) + `)
		ORDER BY x.priority DESC`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mixins []model.Mixin
	for rows.Next() {
		var x model.Mixin
		var imageURL sql.NullString
		if err := rows.Scan(&x.ID, &x.Name, &x.Type, &x.Text, &x.Link, &x.TextForLink, &x.DisplayOn, &x.PageType,
			&x.Priority, &x.Regex, &x.Draft, &x.PostID, &x.ImageID, &imageURL); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			x.ImageURL = imageURL.String
		}
		mixins = append(mixins, x)
	}
	return mixins, rows.Err()
}

// GetMixinSettings returns the singleton settings record; a zero value
// means the record is unset and callers should apply defaults.
func (db *DB) GetMixinSettings() (model.MixinSettings, error) {
	var s model.MixinSettings
	err := db.conn.QueryRow("SELECT mixin_per_list, mixin_per_search FROM mixin_settings WHERE id = 1").Scan(&s.MixinPerList, &s.MixinPerSearch)
	if err == sql.ErrNoRows {
		return model.MixinSettings{}, nil
	}
	return s, err
}

// SetMixinSettings upserts the singleton settings record.
func (db *DB) SetMixinSettings(s model.MixinSettings) error {
	_, err := db.conn.Exec(`INSERT INTO mixin_settings (id, mixin_per_list, mixin_per_search) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET mixin_per_list = excluded.mixin_per_list, mixin_per_search = excluded.mixin_per_search`,
		s.MixinPerList, s.MixinPerSearch)
	return err
}

// --- Media Methods ---

// CreateMedia inserts a media row. Returns the ID.
func (db *DB) CreateMedia(name, url string) (int64, error) {
	res, err := db.conn.Exec("INSERT INTO media (name, url) VALUES (?, ?)", name, url)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindOrphanedMedia returns media rows referenced by no post and no mixin.
func (db *DB) FindOrphanedMedia() ([]model.Media, error) {
	rows, err := db.conn.Query(`
		SELECT m.id, m.name, m.url FROM media m
		WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.image_id = m.id)
		  AND NOT EXISTS (SELECT 1 FROM mixins x WHERE x.image_id = m.id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var media []model.Media
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.Name, &m.URL); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// DeleteMedia bulk-deletes media rows by id.
func (db *DB) DeleteMedia(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := db.conn.Exec("DELETE FROM media WHERE id IN ("+placeholders(len(ids))+")", args...)
	return err
}
