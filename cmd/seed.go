/*
Copyright © 2025 Ambor <saltbo@foxmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	pgrepo "github.com/eslsoft/intentd/internal/adapter/repository"
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/internal/infrastructure/config"
	"github.com/eslsoft/intentd/internal/infrastructure/database"
	"github.com/eslsoft/intentd/internal/infrastructure/server"
	"github.com/eslsoft/intentd/internal/repository"
)

// seedFixture is the YAML layout read by `intentd seed`.
type seedFixture struct {
	EntityTypes  []seedEntityType  `yaml:"entity_types"`
	Namespaces   []seedNamespace   `yaml:"namespaces"`
	Applications []seedApplication `yaml:"applications"`
	Intents      []seedIntent      `yaml:"intents"`
	Dictionaries []seedDictionary  `yaml:"dictionaries"`
	Sentences    []seedSentence    `yaml:"sentences"`
}

type seedEntity struct {
	Type         string `yaml:"type"`
	Role         string `yaml:"role"`
	AtStartOfDay bool   `yaml:"at_start_of_day"`
}

type seedEntityType struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Dictionary  bool         `yaml:"dictionary"`
	Obfuscated  bool         `yaml:"obfuscated"`
	SubEntities []seedEntity `yaml:"sub_entities"`
}

type seedNamespace struct {
	Namespace string `yaml:"namespace"`
	Imports   []struct {
		Namespace string `yaml:"namespace"`
		Model     bool   `yaml:"model"`
	} `yaml:"imports"`
}

type seedApplication struct {
	Namespace              string              `yaml:"namespace"`
	Name                   string              `yaml:"name"`
	SupportedLocales       []string            `yaml:"supported_locales"`
	EngineType             string              `yaml:"engine_type"`
	UnknownIntentThreshold float64             `yaml:"unknown_intent_threshold"`
	NormalizeText          bool                `yaml:"normalize_text"`
	IntentStates           map[string][]string `yaml:"intent_states"`
}

type seedIntent struct {
	Namespace       string       `yaml:"namespace"`
	Name            string       `yaml:"name"`
	Label           string       `yaml:"label"`
	Applications    []string     `yaml:"applications"`
	Entities        []seedEntity `yaml:"entities"`
	SharedIntents   []string     `yaml:"shared_intents"`
	MandatoryStates []string     `yaml:"mandatory_states"`
}

type seedDictionary struct {
	Namespace   string  `yaml:"namespace"`
	Entity      string  `yaml:"entity"`
	OnlyValues  bool    `yaml:"only_values"`
	MinDistance float64 `yaml:"min_distance"`
	Values      []struct {
		Value  string              `yaml:"value"`
		Labels map[string][]string `yaml:"labels"`
	} `yaml:"values"`
}

type seedSentenceEntity struct {
	Type        string               `yaml:"type"`
	Role        string               `yaml:"role"`
	Start       int                  `yaml:"start"`
	End         int                  `yaml:"end"`
	SubEntities []seedSentenceEntity `yaml:"sub_entities"`
}

type seedSentence struct {
	Application string               `yaml:"application"`
	Language    string               `yaml:"language"`
	Text        string               `yaml:"text"`
	Intent      string               `yaml:"intent"`
	Status      string               `yaml:"status"`
	Entities    []seedSentenceEntity `yaml:"entities"`
}

// seedPlan is the fixture resolved into definitions with stable ids.
type seedPlan struct {
	EntityTypes  []entity.EntityTypeDefinition
	Namespaces   []entity.NamespaceConfiguration
	Applications []entity.ApplicationDefinition
	Intents      []entity.IntentDefinition
	Dictionaries []entity.DictionaryData
	Sentences    []entity.ClassifiedSentence
}

func readSeedFixture(r io.Reader) (*seedFixture, error) {
	var fixture seedFixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("decode seed fixture: %w", err)
	}
	return &fixture, nil
}

func toEntityDefinitions(in []seedEntity) []entity.EntityDefinition {
	return lo.Map(in, func(e seedEntity, _ int) entity.EntityDefinition {
		return entity.EntityDefinition{EntityTypeName: e.Type, Role: e.Role, AtStartOfDay: e.AtStartOfDay}
	})
}

func toClassifiedEntities(in []seedSentenceEntity) []entity.ClassifiedEntity {
	return lo.Map(in, func(e seedSentenceEntity, _ int) entity.ClassifiedEntity {
		return entity.ClassifiedEntity{Type: e.Type, Role: e.Role, Start: e.Start, End: e.End, SubEntities: toClassifiedEntities(e.SubEntities)}
	})
}

// buildSeedPlan resolves names to ids. Existing ids are reused so seeding twice updates in place.
func buildSeedPlan(f *seedFixture, existingApps map[string]string, existingIntents map[string]string) (*seedPlan, error) {
	plan := &seedPlan{}
	idFor := func(existing map[string]string, qualified string) string {
		if id, ok := existing[qualified]; ok {
			return id
		}
		return uuid.NewString()
	}

	for _, t := range f.EntityTypes {
		plan.EntityTypes = append(plan.EntityTypes, entity.EntityTypeDefinition{
			Name: t.Name, Description: t.Description, Dictionary: t.Dictionary, Obfuscated: t.Obfuscated,
			SubEntities: toEntityDefinitions(t.SubEntities),
		})
	}
	for _, ns := range f.Namespaces {
		cfg := entity.NamespaceConfiguration{Namespace: ns.Namespace}
		for _, imp := range ns.Imports {
			cfg.Imports = append(cfg.Imports, entity.NamespaceImport{Namespace: imp.Namespace, Model: imp.Model})
		}
		plan.Namespaces = append(plan.Namespaces, cfg)
	}

	appIndex := map[string]int{}
	for _, a := range f.Applications {
		qualified := entity.QualifiedName(a.Namespace, a.Name)
		if _, dup := appIndex[qualified]; dup {
			return nil, fmt.Errorf("application %s declared twice", qualified)
		}
		appIndex[qualified] = len(plan.Applications)
		plan.Applications = append(plan.Applications, entity.ApplicationDefinition{
			ID:        idFor(existingApps, qualified),
			Namespace: a.Namespace,
			Name:      a.Name,
			Intents:   []string{},
			SupportedLocales: lo.FilterMap(a.SupportedLocales, func(code string, _ int) (entity.Locale, bool) {
				l := entity.ParseLocale(code)
				return l, l != entity.LocaleUnspecified
			}),
			EngineType:             a.EngineType,
			UnknownIntentThreshold: a.UnknownIntentThreshold,
			NormalizeText:          a.NormalizeText,
			IntentStatesByIntent:   map[string][]string{},
		})
	}

	intentIDs := map[string]string{}
	for _, in := range f.Intents {
		qualified := entity.QualifiedName(in.Namespace, in.Name)
		def := entity.IntentDefinition{
			ID:              idFor(existingIntents, qualified),
			Namespace:       in.Namespace,
			Name:            in.Name,
			Label:           in.Label,
			Entities:        toEntityDefinitions(in.Entities),
			SharedIntents:   in.SharedIntents,
			MandatoryStates: in.MandatoryStates,
		}
		intentIDs[qualified] = def.ID
		for _, appName := range in.Applications {
			appQualified := appName
			if ns, _ := entity.SplitQualifiedName(appName); ns == "" {
				appQualified = entity.QualifiedName(in.Namespace, appName)
			}
			idx, ok := appIndex[appQualified]
			if !ok {
				return nil, fmt.Errorf("intent %s references unknown application %s", qualified, appQualified)
			}
			app := &plan.Applications[idx]
			app.Intents = append(app.Intents, def.ID)
			def.ApplicationIDs = append(def.ApplicationIDs, app.ID)
		}
		plan.Intents = append(plan.Intents, def)
	}
	for i, a := range f.Applications {
		for intentName, states := range a.IntentStates {
			id, ok := intentIDs[entity.QualifiedName(a.Namespace, intentName)]
			if !ok {
				return nil, fmt.Errorf("application %s: states for unknown intent %s", entity.QualifiedName(a.Namespace, a.Name), intentName)
			}
			plan.Applications[i].IntentStatesByIntent[id] = states
		}
	}

	for i := range plan.Intents {
		def := &plan.Intents[i]
		shared := def.SharedIntents
		def.SharedIntents = nil
		for _, name := range shared {
			if ns, _ := entity.SplitQualifiedName(name); ns == "" {
				name = entity.QualifiedName(def.Namespace, name)
			}
			id, ok := intentIDs[name]
			if !ok {
				return nil, fmt.Errorf("intent %s shares unknown intent %s", def.QualifiedName(), name)
			}
			def.SharedIntents = append(def.SharedIntents, id)
		}
	}

	for _, d := range f.Dictionaries {
		data := entity.DictionaryData{Namespace: d.Namespace, EntityName: d.Entity, OnlyValues: d.OnlyValues, MinDistance: d.MinDistance}
		for _, v := range d.Values {
			labels := make(map[entity.Locale][]string, len(v.Labels))
			for code, l := range v.Labels {
				labels[entity.ParseLocale(code)] = l
			}
			data.Values = append(data.Values, entity.DictionaryValue{Value: v.Value, Labels: labels})
		}
		plan.Dictionaries = append(plan.Dictionaries, data)
	}

	for _, s := range f.Sentences {
		idx, ok := appIndex[s.Application]
		if !ok {
			return nil, fmt.Errorf("sentence %q references unknown application %s", s.Text, s.Application)
		}
		intentID := entity.UnknownIntentName
		if s.Intent != entity.UnknownIntentName {
			if intentID, ok = intentIDs[s.Intent]; !ok {
				return nil, fmt.Errorf("sentence %q references unknown intent %s", s.Text, s.Intent)
			}
		}
		status := entity.ParseSentenceStatus(s.Status)
		if s.Status == "" {
			status = entity.SentenceStatusValidated
		}
		plan.Sentences = append(plan.Sentences, entity.ClassifiedSentence{
			Text:           s.Text,
			Language:       entity.ParseLocale(s.Language),
			ApplicationID:  plan.Applications[idx].ID,
			Classification: entity.Classification{IntentID: intentID, Entities: toClassifiedEntities(s.Entities)},
			Status:         status,
		})
	}
	return plan, nil
}

type seedStores struct {
	entityTypes  repository.EntityTypeRepository
	namespaces   repository.NamespaceConfigurationRepository
	applications repository.ApplicationRepository
	intents      repository.IntentRepository
	dictionaries repository.DictionaryRepository
	sentences    repository.SentenceRepository
}

func (s seedStores) existingIDs(ctx context.Context) (map[string]string, map[string]string, error) {
	apps, err := s.applications.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	intents, err := s.intents.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	appIDs := lo.Associate(apps, func(a entity.ApplicationDefinition) (string, string) { return a.QualifiedName(), a.ID })
	intentIDs := lo.Associate(intents, func(i entity.IntentDefinition) (string, string) { return i.QualifiedName(), i.ID })
	return appIDs, intentIDs, nil
}

func (s seedStores) apply(ctx context.Context, plan *seedPlan, out io.Writer) error {
	for i := range plan.EntityTypes {
		if err := s.entityTypes.Save(ctx, &plan.EntityTypes[i]); err != nil {
			return fmt.Errorf("entity type %s: %w", plan.EntityTypes[i].Name, err)
		}
	}
	for i := range plan.Namespaces {
		if err := s.namespaces.Save(ctx, &plan.Namespaces[i]); err != nil {
			return fmt.Errorf("namespace %s: %w", plan.Namespaces[i].Namespace, err)
		}
	}
	for i := range plan.Applications {
		if _, err := s.applications.Save(ctx, &plan.Applications[i]); err != nil {
			return fmt.Errorf("application %s: %w", plan.Applications[i].QualifiedName(), err)
		}
	}
	for i := range plan.Intents {
		if _, err := s.intents.Save(ctx, &plan.Intents[i]); err != nil {
			return fmt.Errorf("intent %s: %w", plan.Intents[i].QualifiedName(), err)
		}
	}
	for i := range plan.Dictionaries {
		if err := s.dictionaries.Save(ctx, &plan.Dictionaries[i]); err != nil {
			return fmt.Errorf("dictionary %s: %w", plan.Dictionaries[i].QualifiedName(), err)
		}
	}
	for i := range plan.Sentences {
		if err := s.sentences.Save(ctx, &plan.Sentences[i]); err != nil {
			return fmt.Errorf("sentence %q: %w", plan.Sentences[i].Text, err)
		}
	}
	fmt.Fprintf(out, "seeded %d entity types, %d namespaces, %d applications, %d intents, %d dictionaries, %d sentences\n",
		len(plan.EntityTypes), len(plan.Namespaces), len(plan.Applications), len(plan.Intents), len(plan.Dictionaries), len(plan.Sentences))
	return nil
}

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load definitions and sentences from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		fixture, err := readSeedFixture(f)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err := server.NewLogger(cfg)
		if err != nil {
			return err
		}
		pool, cleanup, err := database.NewConnection(cfg, logger)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer cleanup()

		stores := seedStores{
			entityTypes:  pgrepo.NewEntityTypeRepository(pool),
			namespaces:   pgrepo.NewNamespaceConfigurationRepository(pool),
			applications: pgrepo.NewApplicationRepository(pool),
			intents:      pgrepo.NewIntentRepository(pool),
			dictionaries: pgrepo.NewDictionaryRepository(pool),
			sentences:    pgrepo.NewSentenceRepository(pool),
		}
		ctx := cmd.Context()
		appIDs, intentIDs, err := stores.existingIDs(ctx)
		if err != nil {
			return err
		}
		plan, err := buildSeedPlan(fixture, appIDs, intentIDs)
		if err != nil {
			return err
		}
		return stores.apply(ctx, plan, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
