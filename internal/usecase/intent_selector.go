package usecase

import (
	"sync"

	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/nlp"
)

type intentSelector struct {
	eligible  map[string]struct{}
	modifiers map[string]float64

	mu     sync.Mutex
	others map[string]float64
}

// NewIntentSelector builds the selector for one request. An intent is eligible when it belongs to the
// candidate set, matches the qualifiers if any were given, and supports the request states.
func NewIntentSelector(app *entity.ApplicationDefinition, intents []entity.IntentDefinition, qualifiers []entity.IntentQualifier, states []string) nlp.IntentSelector {
	modifiers := lo.Associate(qualifiers, func(q entity.IntentQualifier) (string, float64) {
		return q.Intent, q.Modifier
	})
	eligible := map[string]struct{}{}
	for _, intent := range intents {
		name := intent.QualifiedName()
		if len(qualifiers) > 0 {
			if _, ok := modifiers[name]; !ok {
				continue
			}
		}
		if !supportsStates(app, intent, states) {
			continue
		}
		eligible[name] = struct{}{}
	}
	return &intentSelector{eligible: eligible, modifiers: modifiers, others: map[string]float64{}}
}

// supportsStates applies the application's per-intent states when set, else the intent's own.
func supportsStates(app *entity.ApplicationDefinition, intent entity.IntentDefinition, states []string) bool {
	if app != nil {
		if allowed, ok := app.IntentStatesByIntent[intent.ID]; ok && len(allowed) > 0 {
			return lo.Some(allowed, states)
		}
	}
	return intent.SupportsStates(states)
}

func (s *intentSelector) IsEligible(intent string) bool {
	_, ok := s.eligible[intent]
	return ok
}

func (s *intentSelector) SelectIntent(ranked []entity.IntentProbability) (string, float64, bool) {
	var (
		best      string
		bestProb  float64
		bestScore float64
		found     bool
	)
	candidates := map[string]float64{}
	for _, c := range ranked {
		if !s.IsEligible(c.Intent) {
			continue
		}
		candidates[c.Intent] = c.Probability
		score := c.Probability + s.modifiers[c.Intent]
		if !found || score > bestScore {
			best, bestProb, bestScore, found = c.Intent, c.Probability, score, true
		}
	}
	for intent, p := range candidates {
		if intent != best {
			s.AddOtherIntent(intent, p)
		}
	}
	return best, bestProb, found
}

func (s *intentSelector) OtherIntents() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.others))
	for k, v := range s.others {
		out[k] = v
	}
	return out
}

func (s *intentSelector) AddOtherIntent(intent string, probability float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.others[intent] = probability
}
