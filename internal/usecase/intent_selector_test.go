package usecase

import (
	"testing"

	"github.com/eslsoft/intentd/internal/entity"
)

func TestIntentSelector_AppliesModifiersAndCollectsOthers(t *testing.T) {
	intents := []entity.IntentDefinition{
		{ID: "1", Namespace: "acme", Name: "a"},
		{ID: "2", Namespace: "acme", Name: "b"},
		{ID: "3", Namespace: "acme", Name: "c"},
	}
	sel := NewIntentSelector(nil, intents, []entity.IntentQualifier{
		{Intent: "acme:a"},
		{Intent: "acme:b", Modifier: 0.5},
	}, nil)

	if sel.IsEligible("acme:c") {
		t.Fatalf("expected unqualified intent to be ineligible")
	}
	intent, p, ok := sel.SelectIntent([]entity.IntentProbability{
		{Intent: "acme:c", Probability: 0.9},
		{Intent: "acme:a", Probability: 0.6},
		{Intent: "acme:b", Probability: 0.3},
	})
	if !ok || intent != "acme:b" || p != 0.3 {
		t.Fatalf("expected modifier to promote acme:b, got %s %.2f %v", intent, p, ok)
	}
	others := sel.OtherIntents()
	if len(others) != 1 || others["acme:a"] != 0.6 {
		t.Fatalf("unexpected others %v", others)
	}
}

func TestIntentSelector_ApplicationStatesOverrideIntentStates(t *testing.T) {
	intents := []entity.IntentDefinition{
		{ID: "1", Namespace: "acme", Name: "pay", MandatoryStates: []string{"logged"}},
		{ID: "2", Namespace: "acme", Name: "help"},
	}
	app := &entity.ApplicationDefinition{IntentStatesByIntent: map[string][]string{"1": {"checkout"}}}

	sel := NewIntentSelector(app, intents, nil, []string{"logged"})
	if sel.IsEligible("acme:pay") || !sel.IsEligible("acme:help") {
		t.Fatalf("expected application states to take precedence")
	}
	sel = NewIntentSelector(app, intents, nil, []string{"checkout"})
	if !sel.IsEligible("acme:pay") {
		t.Fatalf("expected pay to be eligible in checkout")
	}
	if _, _, ok := NewIntentSelector(app, intents, nil, nil).SelectIntent([]entity.IntentProbability{{Intent: "acme:pay", Probability: 1}}); ok {
		t.Fatalf("expected no eligible intent without states")
	}
}
