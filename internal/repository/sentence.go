package repository

import (
	"context"
	"time"

	"github.com/eslsoft/intentd/internal/entity"
)

// SentenceQuery selects training sentences for a model build.
type SentenceQuery struct {
	ApplicationID string
	Language      entity.Locale
	Statuses      []entity.SentenceStatus
	// IntentIDs restricts to the given intents; empty means all.
	IntentIDs []string
	// EntityType restricts to sentences holding this entity type at any depth.
	EntityType string
	// Namespace widens the search to every application of the namespace when ApplicationID is empty.
	Namespace string
	// UpdatedBefore, when set, keeps sentences last updated at or before it.
	UpdatedBefore time.Time
}

// ListSentenceQuery pages through sentences with a CEL filter.
type ListSentenceQuery struct {
	ApplicationID string
	Pagination
	FilterOrder
}

// SentenceRepository defines data access for classified sentences.
type SentenceRepository interface {
	// FindTrusted returns the validated or model sentence matching text exactly, or nil.
	FindTrusted(ctx context.Context, applicationID string, language entity.Locale, text string, normalized bool) (*entity.ClassifiedSentence, error)
	Save(ctx context.Context, sentence *entity.ClassifiedSentence) error
	Search(ctx context.Context, query *SentenceQuery) ([]entity.ClassifiedSentence, error)
	List(ctx context.Context, query *ListSentenceQuery) ([]entity.ClassifiedSentence, int64, error)
	UpdateStatus(ctx context.Context, query *SentenceQuery, from, to entity.SentenceStatus) (int64, error)
}
