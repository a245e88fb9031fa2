package repository

import (
	"strings"

	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/entity"
)

// normalizeLowerStrings trims, lowercases and dedupes identifiers, returning nil when nothing remains.
func normalizeLowerStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	result := make([]string, 0, len(in))
	for _, item := range in {
		lower := strings.ToLower(strings.TrimSpace(item))
		if lower == "" {
			continue
		}
		if _, exists := seen[lower]; exists {
			continue
		}
		seen[lower] = struct{}{}
		result = append(result, lower)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func statusStrings(statuses []entity.SentenceStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return normalizeLowerStrings(out)
}

// entityTypeNames lists every entity type of a classification, sub-entities included.
func entityTypeNames(entities []entity.ClassifiedEntity) []string {
	var names []string
	var walk func([]entity.ClassifiedEntity)
	walk = func(es []entity.ClassifiedEntity) {
		for _, e := range es {
			names = append(names, e.Type)
			walk(e.SubEntities)
		}
	}
	walk(entities)
	return nonNil(lo.Uniq(names))
}
