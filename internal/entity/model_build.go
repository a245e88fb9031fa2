package entity

import "time"

// ModelBuildType is the scope of a model build.
type ModelBuildType string

const (
	ModelBuildTypeIntent             ModelBuildType = "intent"
	ModelBuildTypeIntentEntities     ModelBuildType = "intent_entities"
	ModelBuildTypeEntityTypeEntities ModelBuildType = "entity_type_entities"
)

// ModelBuild is one append-only audit record of a build attempt.
type ModelBuild struct {
	ID             string
	ApplicationID  string
	Language       Locale
	Type           ModelBuildType
	IntentID       string
	EntityTypeName string
	NbSentences    int
	Duration       time.Duration
	Error          bool
	ErrorMessage   string
	Date           time.Time
}

// ModelBuildTrigger is a durable request to rebuild an application's models.
type ModelBuildTrigger struct {
	ID            string
	ApplicationID string
	// Language is optional; empty means every supported locale.
	Language  Locale
	CreatedAt time.Time
}

// ParseRequestLog is one monitoring record of a parse request.
type ParseRequestLog struct {
	ID            string
	ApplicationID string
	Query         *ParseQuery
	// Result is nil when the request failed.
	Result   *ParseResult
	Duration time.Duration
	Error    bool
	Date     time.Time
}

// ParseLogFilter narrows parse log listings.
type ParseLogFilter struct {
	ApplicationID string
	Since         time.Time
	Limit         int32
}
