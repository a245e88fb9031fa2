package mapping

import (
	"github.com/samber/lo"

	"github.com/eslsoft/intentd/internal/entity"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

func toPbSentenceEntity(in entity.ClassifiedEntity) intentdv1.SentenceEntity {
	return intentdv1.SentenceEntity{
		Type:        in.Type,
		Role:        in.Role,
		Start:       in.Start,
		End:         in.End,
		SubEntities: lo.Map(in.SubEntities, func(s entity.ClassifiedEntity, _ int) intentdv1.SentenceEntity { return toPbSentenceEntity(s) }),
	}
}

func ToPbSentence(in entity.ClassifiedSentence) intentdv1.Sentence {
	return intentdv1.Sentence{
		Text:                  in.Text,
		Language:              in.Language.Code(),
		ApplicationID:         in.ApplicationID,
		IntentID:              in.Classification.IntentID,
		Entities:              lo.Map(in.Classification.Entities, func(e entity.ClassifiedEntity, _ int) intentdv1.SentenceEntity { return toPbSentenceEntity(e) }),
		Status:                string(in.Status),
		LastIntentProbability: in.LastIntentProbability,
		LastEntityProbability: in.LastEntityProbability,
		CreatedAt:             in.CreatedAt,
		UpdatedAt:             in.UpdatedAt,
	}
}

func ToPbTriggerBuildResponse(in *entity.ModelBuildTrigger) *intentdv1.TriggerBuildResponse {
	return &intentdv1.TriggerBuildResponse{
		TriggerID:     in.ID,
		ApplicationID: in.ApplicationID,
		Language:      in.Language.Code(),
		CreatedAt:     in.CreatedAt,
	}
}
