package entity

import (
	"slices"
	"strings"
	"time"
)

// SentenceStatus is the lifecycle stage of a labelled sentence.
type SentenceStatus string

const (
	SentenceStatusUnvalidated SentenceStatus = "unvalidated"
	SentenceStatusValidated   SentenceStatus = "validated"
	SentenceStatusModel       SentenceStatus = "model"
	SentenceStatusDeleted     SentenceStatus = "deleted"
)

var sentenceStatusRank = map[SentenceStatus]int{
	SentenceStatusUnvalidated: 0,
	SentenceStatusValidated:   1,
	SentenceStatusModel:       2,
	SentenceStatusDeleted:     3,
}

// ParseSentenceStatus accepts any case; unknown values map to unvalidated.
func ParseSentenceStatus(s string) SentenceStatus {
	status := SentenceStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sentenceStatusRank[status]; ok {
		return status
	}
	return SentenceStatusUnvalidated
}

func (s SentenceStatus) Valid() bool {
	_, ok := sentenceStatusRank[s]
	return ok
}

// Before reports whether s precedes other in the lifecycle.
func (s SentenceStatus) Before(other SentenceStatus) bool {
	return sentenceStatusRank[s] < sentenceStatusRank[other]
}

// Trusted reports whether the sentence is ground truth for the fast path.
func (s SentenceStatus) Trusted() bool {
	return s == SentenceStatusValidated || s == SentenceStatusModel
}

// EntityRef identifies an entity by its type and role.
type EntityRef struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// ClassifiedEntity is an entity occurrence inside a sentence, offsets in runes.
type ClassifiedEntity struct {
	Type        string             `json:"type"`
	Role        string             `json:"role"`
	Start       int                `json:"start"`
	End         int                `json:"end"`
	SubEntities []ClassifiedEntity `json:"sub_entities,omitempty"`
}

func (e ClassifiedEntity) Ref() EntityRef {
	return EntityRef{Type: e.Type, Role: e.Role}
}

func (e ClassifiedEntity) equal(other ClassifiedEntity) bool {
	return e.Type == other.Type && e.Role == other.Role && e.Start == other.Start && e.End == other.End &&
		slices.EqualFunc(e.SubEntities, other.SubEntities, ClassifiedEntity.equal)
}

// Classification is the labelled outcome of a sentence.
type Classification struct {
	IntentID string             `json:"intent_id"`
	Entities []ClassifiedEntity `json:"entities"`
}

// Equal compares intent and entity occurrences in order.
func (c Classification) Equal(other Classification) bool {
	return c.IntentID == other.IntentID && slices.EqualFunc(c.Entities, other.Entities, ClassifiedEntity.equal)
}

// ClassifiedSentence is a labelled example. Its identity is (ApplicationID, Language, Text).
type ClassifiedSentence struct {
	Text                  string
	NormalizedText        string
	Language              Locale
	ApplicationID         string
	Classification        Classification
	Status                SentenceStatus
	LastIntentProbability float64
	LastEntityProbability float64
	ForcedNormalization   bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasSameContent ignores status, dates and probabilities.
func (s *ClassifiedSentence) HasSameContent(other *ClassifiedSentence) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Text == other.Text &&
		s.Language == other.Language &&
		s.ApplicationID == other.ApplicationID &&
		s.Classification.Equal(other.Classification)
}

// Normalize ensures defaults before persistence.
func (s *ClassifiedSentence) Normalize(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if !s.Status.Valid() {
		s.Status = SentenceStatusUnvalidated
	}
	if s.NormalizedText == "" {
		s.NormalizedText = NormalizeText(s.Text)
	}
	if s.Classification.Entities == nil {
		s.Classification.Entities = []ClassifiedEntity{}
	}
}
