// Package vectorstore adapts the typed entity model to a cosine-similarity
// vector index, wrapping chromem-go's collection API in a small
// collection-scoped Store type.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"litkg/internal/apperrors"
)

// idNamespace is the fixed namespace used to hash non-UUID internal ids into
// UUIDs deterministically (same internal id always maps to the same UUID).
var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("litkg.vectorstore"))

// internalIDKey is the payload field the original internal id is stashed
// under when it had to be hashed to a UUID.
const internalIDKey = "_internal_id"

// Config holds vector store configuration.
type Config struct {
	// PersistPath is the on-disk path to persist the vector database.
	// Empty means in-memory only.
	PersistPath string
}

// Store provides collection-scoped similarity search over entity and
// document embeddings.
type Store struct {
	db *chromem.DB
}

// New creates a new vector store, persistent if cfg.PersistPath is set.
func New(cfg Config) (*Store, error) {
	if cfg.PersistPath != "" {
		db, err := chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("open-persistent-db")
		}
		return &Store{db: db}, nil
	}
	return &Store{db: chromem.NewDB()}, nil
}

// EnsureCollection creates the named collection if it does not already
// exist. chromem-go collections don't take an explicit dimension; the
// dimension is fixed implicitly by the first upserted vector, and cosine
// distance is chromem-go's only supported metric.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	if s.db.GetCollection(name, nil) != nil {
		return nil
	}
	_, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("ensure-collection").WithDetails(name)
	}
	return nil
}

// NormalizeID converts an internal id into the UUID form the vector index
// requires, returning the original id unchanged if it is already a UUID.
// Only the converted id is returned; Upsert keeps the original id in the
// payload under internalIDKey.
func NormalizeID(internalID string) string {
	if _, err := uuid.Parse(internalID); err == nil {
		return internalID
	}
	return uuid.NewSHA1(idNamespace, []byte(internalID)).String()
}

// Upsert stores (or overwrites) a vector with its payload under id,
// stashing the original internal id in the payload when id had to be
// UUID-hashed.
func (s *Store) Upsert(ctx context.Context, collectionName, internalID string, vector []float32, content string, payload map[string]string) error {
	collection := s.db.GetCollection(collectionName, nil)
	if collection == nil {
		if err := s.EnsureCollection(ctx, collectionName); err != nil {
			return err
		}
		collection = s.db.GetCollection(collectionName, nil)
	}

	id := NormalizeID(internalID)
	meta := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		meta[k] = v
	}
	if id != internalID {
		meta[internalIDKey] = internalID
	}

	err := collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  meta,
		Embedding: vector,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("upsert").WithDetails(internalID)
	}
	return nil
}

// SearchResult is one ranked hit from a similarity search.
type SearchResult struct {
	ID         string
	InternalID string
	Similarity float32
	Payload    map[string]string
}

// SearchSimilar returns the top-`limit` vectors by cosine similarity, with
// an optional metadata filter and an optional minimum-similarity threshold
// (0 means no threshold).
func (s *Store) SearchSimilar(ctx context.Context, collectionName string, queryVector []float32, limit int, filter map[string]string, minSimilarity float32) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	collection := s.db.GetCollection(collectionName, nil)
	if collection == nil {
		return nil, apperrors.New(apperrors.ErrVectorStoreFailed, fmt.Sprintf("collection not found: %s", collectionName))
	}

	fetchLimit := limit
	if minSimilarity > 0 {
		fetchLimit = limit * 2
	}

	raw, err := collection.QueryEmbedding(ctx, queryVector, fetchLimit, filter, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("search-similar")
	}

	results := make([]SearchResult, 0, limit)
	for _, r := range raw {
		if minSimilarity > 0 && r.Similarity < minSimilarity {
			continue
		}
		results = append(results, toSearchResult(r))
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// GetByID retrieves a stored vector and its payload by id (accepting either
// the original internal id or its normalized UUID form).
func (s *Store) GetByID(ctx context.Context, collectionName, internalID string) (*SearchResult, error) {
	collection := s.db.GetCollection(collectionName, nil)
	if collection == nil {
		return nil, apperrors.New(apperrors.ErrVectorStoreFailed, fmt.Sprintf("collection not found: %s", collectionName))
	}

	doc, err := collection.GetByID(ctx, NormalizeID(internalID))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("get-by-id").WithDetails(internalID)
	}

	result := SearchResult{ID: doc.ID, Payload: doc.Metadata}
	if v, ok := doc.Metadata[internalIDKey]; ok {
		result.InternalID = v
	} else {
		result.InternalID = doc.ID
	}
	return &result, nil
}

// Count returns the number of vectors stored in a collection.
func (s *Store) Count(ctx context.Context, collectionName string) (int, error) {
	collection := s.db.GetCollection(collectionName, nil)
	if collection == nil {
		return 0, apperrors.New(apperrors.ErrVectorStoreFailed, fmt.Sprintf("collection not found: %s", collectionName))
	}
	return collection.Count(), nil
}

// DeleteByID removes one or more vectors by internal id.
func (s *Store) DeleteByID(ctx context.Context, collectionName string, internalIDs ...string) error {
	collection := s.db.GetCollection(collectionName, nil)
	if collection == nil {
		return apperrors.New(apperrors.ErrVectorStoreFailed, fmt.Sprintf("collection not found: %s", collectionName))
	}

	ids := make([]string, len(internalIDs))
	for i, id := range internalIDs {
		ids[i] = NormalizeID(id)
	}

	if err := collection.Delete(ctx, nil, nil, ids...); err != nil {
		return apperrors.Wrap(apperrors.ErrVectorStoreFailed, err).WithStage("delete-by-id")
	}
	return nil
}

// DeleteCollection removes a collection entirely.
func (s *Store) DeleteCollection(name string) error {
	s.db.DeleteCollection(name)
	return nil
}

// ListCollections returns all collection names.
func (s *Store) ListCollections() []string {
	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names
}

func toSearchResult(r chromem.Result) SearchResult {
	result := SearchResult{ID: r.ID, Similarity: r.Similarity, Payload: r.Metadata}
	if v, ok := r.Metadata[internalIDKey]; ok {
		result.InternalID = v
	} else {
		result.InternalID = r.ID
	}
	return result
}
