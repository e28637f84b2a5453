// Package content implements the upstream content store on sqlite.
//
// The store is the single ContentFetcher implementation: batch lookups by ID
// and slug, taxonomy and creator resolution, and bootstrap assembly. Document
// bodies are sanitized on write, so everything downstream of the store can
// treat BodyHTML as trusted markup.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	_ "modernc.org/sqlite"

	"kinetic/pkg/kinetic"
)

const defaultBootstrapLimit = 24

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	slug           TEXT NOT NULL UNIQUE,
	type           TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	summary        TEXT NOT NULL DEFAULT '',
	body_html      TEXT NOT NULL DEFAULT '',
	score          REAL NOT NULL DEFAULT 0,
	release_date   TEXT NOT NULL DEFAULT '',
	published_at   TEXT NOT NULL DEFAULT '',
	main_image     TEXT NOT NULL DEFAULT '',
	tag_slugs      TEXT NOT NULL DEFAULT '[]',
	creator_ids    TEXT NOT NULL DEFAULT '[]',
	related_slugs  TEXT NOT NULL DEFAULT '[]',
	linked_slugs   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_documents_type_published ON documents (type, published_at DESC);

CREATE TABLE IF NOT EXISTS tags (
	slug        TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS creators (
	id           TEXT PRIMARY KEY,
	username     TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	avatar_url   TEXT NOT NULL DEFAULT ''
);
`

// Option mutates store configuration.
type Option func(*Store)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// WithBootstrapLimit caps how many documents per hub the bootstrap payload
// carries.
func WithBootstrapLimit(limit int) Option {
	return func(store *Store) {
		if limit > 0 {
			store.bootstrapLimit = limit
		}
	}
}

// Store is the sqlite-backed content store.
type Store struct {
	db             *sql.DB
	logger         *slog.Logger
	policy         *bluemonday.Policy
	bootstrapLimit int
}

// Open opens (and migrates) the store at path. Use ":memory:" for an
// ephemeral store.
func Open(ctx context.Context, path string, options ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open content store %s: %w", path, err)
	}
	// sqlite is single-writer; a second pooled connection would also see a
	// different database entirely for ":memory:" paths.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate content store: %w", err)
	}

	store := &Store{
		db:             db,
		logger:         slog.Default(),
		policy:         bluemonday.UGCPolicy(),
		bootstrapLimit: defaultBootstrapLimit,
	}
	for _, option := range options {
		option(store)
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close content store: %w", err)
	}

	return nil
}

// UpsertDocuments writes documents, sanitizing their bodies first.
func (s *Store) UpsertDocuments(ctx context.Context, documents []kinetic.ContentDocument) error {
	if len(documents) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
INSERT INTO documents
	(id, slug, type, title, summary, body_html, score, release_date, published_at,
	 main_image, tag_slugs, creator_ids, related_slugs, linked_slugs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	slug = excluded.slug, type = excluded.type, title = excluded.title,
	summary = excluded.summary, body_html = excluded.body_html,
	score = excluded.score, release_date = excluded.release_date,
	published_at = excluded.published_at, main_image = excluded.main_image,
	tag_slugs = excluded.tag_slugs, creator_ids = excluded.creator_ids,
	related_slugs = excluded.related_slugs, linked_slugs = excluded.linked_slugs`

	for _, document := range documents {
		if document.ID == "" {
			return fmt.Errorf("upsert documents: document %q missing id", document.Slug)
		}
		if err := document.Validate(); err != nil {
			return fmt.Errorf("upsert documents: %w", err)
		}

		mainImage, err := encodeMediaRef(document.MainImage)
		if err != nil {
			return fmt.Errorf("upsert documents %s: %w", document.Slug, err)
		}
		_, err = tx.ExecContext(ctx, query,
			document.ID,
			document.Slug,
			string(document.Type),
			document.Title,
			document.Summary,
			s.policy.Sanitize(document.BodyHTML),
			document.Score,
			encodeTime(document.ReleaseDate),
			encodeTime(document.PublishedAt),
			mainImage,
			encodeStrings(document.TagSlugs),
			encodeStrings(document.CreatorIDs),
			encodeStrings(document.RelatedSlugs),
			encodeStrings(document.LinkedSlugs),
		)
		if err != nil {
			return fmt.Errorf("upsert documents %s: %w", document.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}

	return nil
}

// UpsertTags writes taxonomy entries.
func (s *Store) UpsertTags(ctx context.Context, entries []kinetic.TaxonomyEntry) error {
	const query = `
INSERT INTO tags (slug, title, kind, description) VALUES (?, ?, ?, ?)
ON CONFLICT (slug) DO UPDATE SET
	title = excluded.title, kind = excluded.kind, description = excluded.description`

	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("upsert tags: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, entry.Slug, entry.Title, entry.Kind, entry.Description); err != nil {
			return fmt.Errorf("upsert tags %s: %w", entry.Slug, err)
		}
	}

	return nil
}

// UpsertCreators writes creator profiles.
func (s *Store) UpsertCreators(ctx context.Context, profiles []kinetic.CreatorProfile) error {
	const query = `
INSERT INTO creators (id, username, display_name, avatar_url) VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	username = excluded.username, display_name = excluded.display_name,
	avatar_url = excluded.avatar_url`

	for _, profile := range profiles {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("upsert creators: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, query, profile.ID, profile.Username, profile.DisplayName, profile.AvatarURL); err != nil {
			return fmt.Errorf("upsert creators %s: %w", profile.ID, err)
		}
	}

	return nil
}

// FetchDocumentsByIDs returns full documents for the given store IDs. Unknown
// IDs are omitted, not reported as errors.
func (s *Store) FetchDocumentsByIDs(ctx context.Context, ids []string) ([]kinetic.ContentDocument, error) {
	return s.fetchDocumentsBy(ctx, "id", ids)
}

// FetchDocumentsBySlugs returns full documents for the given slugs. Unknown
// slugs are omitted, not reported as errors.
func (s *Store) FetchDocumentsBySlugs(ctx context.Context, slugs []string) ([]kinetic.ContentDocument, error) {
	return s.fetchDocumentsBy(ctx, "slug", slugs)
}

func (s *Store) fetchDocumentsBy(ctx context.Context, column string, keys []string) ([]kinetic.ContentDocument, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
SELECT id, slug, type, title, summary, body_html, score, release_date,
	published_at, main_image, tag_slugs, creator_ids, related_slugs, linked_slugs
FROM documents WHERE %s IN (%s)`, column, placeholders(len(keys)))

	rows, err := s.db.QueryContext(ctx, query, anySlice(keys)...)
	if err != nil {
		return nil, fmt.Errorf("fetch documents by %s: %w", column, err)
	}
	defer rows.Close()

	documents := make([]kinetic.ContentDocument, 0, len(keys))
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("fetch documents by %s: %w", column, err)
		}
		documents = append(documents, document)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch documents by %s: %w", column, err)
	}

	return documents, nil
}

// FetchTagsBySlugs returns taxonomy entries for the given slugs.
func (s *Store) FetchTagsBySlugs(ctx context.Context, slugs []string) ([]kinetic.TaxonomyEntry, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT slug, title, kind, description FROM tags WHERE slug IN (%s)`,
		placeholders(len(slugs)),
	)
	rows, err := s.db.QueryContext(ctx, query, anySlice(slugs)...)
	if err != nil {
		return nil, fmt.Errorf("fetch tags: %w", err)
	}
	defer rows.Close()

	entries := make([]kinetic.TaxonomyEntry, 0, len(slugs))
	for rows.Next() {
		var entry kinetic.TaxonomyEntry
		if err := rows.Scan(&entry.Slug, &entry.Title, &entry.Kind, &entry.Description); err != nil {
			return nil, fmt.Errorf("fetch tags: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch tags: %w", err)
	}

	return entries, nil
}

// FetchCreatorsByIDs returns creator profiles for the given IDs.
func (s *Store) FetchCreatorsByIDs(ctx context.Context, ids []string) ([]kinetic.CreatorProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, username, display_name, avatar_url FROM creators WHERE id IN (%s)`,
		placeholders(len(ids)),
	)
	rows, err := s.db.QueryContext(ctx, query, anySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("fetch creators: %w", err)
	}
	defer rows.Close()

	profiles := make([]kinetic.CreatorProfile, 0, len(ids))
	for rows.Next() {
		var profile kinetic.CreatorProfile
		if err := rows.Scan(&profile.ID, &profile.Username, &profile.DisplayName, &profile.AvatarURL); err != nil {
			return nil, fmt.Errorf("fetch creators: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch creators: %w", err)
	}

	return profiles, nil
}

// FetchBootstrap assembles the full warm-start payload: the newest documents
// per hub, a listing snapshot for each populated hub, and every tag and
// creator those documents reference.
func (s *Store) FetchBootstrap(ctx context.Context) (kinetic.UniversalBootstrap, error) {
	payload := kinetic.UniversalBootstrap{
		Snapshots: make(map[kinetic.HubKey]kinetic.ListingSnapshot),
	}

	tagSet := make(map[string]struct{})
	creatorSet := make(map[string]struct{})

	for _, hub := range kinetic.AllHubs() {
		contentType, _ := kinetic.ContentTypeForHub(hub)
		documents, err := s.fetchNewestByType(ctx, contentType, s.bootstrapLimit)
		if err != nil {
			return kinetic.UniversalBootstrap{}, fmt.Errorf("fetch bootstrap hub %s: %w", hub, err)
		}
		if len(documents) == 0 {
			continue
		}

		snapshot := kinetic.ListingSnapshot{
			Hub:        hub,
			NextOffset: len(documents),
		}
		hubTags := make(map[string]struct{})
		for _, document := range documents {
			snapshot.ItemSlugs = append(snapshot.ItemSlugs, document.Slug)
			for _, slug := range document.TagSlugs {
				hubTags[slug] = struct{}{}
				tagSet[slug] = struct{}{}
			}
			for _, id := range document.CreatorIDs {
				creatorSet[id] = struct{}{}
			}
		}
		snapshot.AvailableTags = sortedKeys(hubTags)
		payload.Documents = append(payload.Documents, documents...)
		payload.Snapshots[hub] = snapshot
	}

	tags, err := s.FetchTagsBySlugs(ctx, sortedKeys(tagSet))
	if err != nil {
		return kinetic.UniversalBootstrap{}, fmt.Errorf("fetch bootstrap tags: %w", err)
	}
	payload.Tags = tags

	creators, err := s.FetchCreatorsByIDs(ctx, sortedKeys(creatorSet))
	if err != nil {
		return kinetic.UniversalBootstrap{}, fmt.Errorf("fetch bootstrap creators: %w", err)
	}
	payload.Creators = creators

	if len(payload.Snapshots) == 0 {
		payload.Snapshots = nil
	}

	return payload, nil
}

func (s *Store) fetchNewestByType(ctx context.Context, contentType kinetic.ContentType, limit int) ([]kinetic.ContentDocument, error) {
	const query = `
SELECT id, slug, type, title, summary, body_html, score, release_date,
	published_at, main_image, tag_slugs, creator_ids, related_slugs, linked_slugs
FROM documents WHERE type = ? ORDER BY published_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(contentType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []kinetic.ContentDocument
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}

	return documents, rows.Err()
}

func scanDocument(rows *sql.Rows) (kinetic.ContentDocument, error) {
	var (
		document     kinetic.ContentDocument
		contentType  string
		releaseDate  string
		publishedAt  string
		mainImage    string
		tagSlugs     string
		creatorIDs   string
		relatedSlugs string
		linkedSlugs  string
	)
	err := rows.Scan(
		&document.ID, &document.Slug, &contentType, &document.Title,
		&document.Summary, &document.BodyHTML, &document.Score,
		&releaseDate, &publishedAt, &mainImage,
		&tagSlugs, &creatorIDs, &relatedSlugs, &linkedSlugs,
	)
	if err != nil {
		return kinetic.ContentDocument{}, err
	}

	document.Type = kinetic.ContentType(contentType)
	if document.ReleaseDate, err = decodeTime(releaseDate); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.PublishedAt, err = decodeTime(publishedAt); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.MainImage, err = decodeMediaRef(mainImage); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.TagSlugs, err = decodeStrings(tagSlugs); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.CreatorIDs, err = decodeStrings(creatorIDs); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.RelatedSlugs, err = decodeStrings(relatedSlugs); err != nil {
		return kinetic.ContentDocument{}, err
	}
	if document.LinkedSlugs, err = decodeStrings(linkedSlugs); err != nil {
		return kinetic.ContentDocument{}, err
	}

	return document, nil
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, _ := json.Marshal(values)

	return string(encoded)
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}

	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}

	return values, nil
}

func encodeMediaRef(ref *kinetic.MediaRef) (string, error) {
	if ref == nil {
		return "", nil
	}

	encoded, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("encode media ref: %w", err)
	}

	return string(encoded), nil
}

func decodeMediaRef(raw string) (*kinetic.MediaRef, error) {
	if raw == "" {
		return nil, nil
	}

	ref := &kinetic.MediaRef{}
	if err := json.Unmarshal([]byte(raw), ref); err != nil {
		return nil, fmt.Errorf("decode media ref: %w", err)
	}

	return ref, nil
}

func encodeTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode time: %w", err)
	}

	return value, nil
}

func placeholders(count int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for idx, value := range values {
		out[idx] = value
	}

	return out
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}

var _ kinetic.ContentFetcher = (*Store)(nil)
