package repository

import (
	"github.com/eslsoft/intentd/internal/entity"
	"github.com/eslsoft/intentd/pkg/filterexpr"
)

var listSentencesSchema = filterexpr.ResourceSchema{
	Filter: map[string]filterexpr.FilterField{
		"status": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "Status",
				filterexpr.OpIN: "Statuses",
			},
			Values: []string{
				string(entity.SentenceStatusUnvalidated),
				string(entity.SentenceStatusValidated),
				string(entity.SentenceStatusModel),
				string(entity.SentenceStatusDeleted),
			},
		},
		"language": {
			Kind: filterexpr.KindString,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "Language"},
		},
		"intent_id": {
			Kind: filterexpr.KindString,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpEQ: "IntentID",
				filterexpr.OpIN: "IntentIDs",
			},
		},
		"text": {
			Kind: filterexpr.KindString,
			Ops:  map[filterexpr.Op]string{filterexpr.OpSW: "TextPrefix"},
		},
		"entity_type": {
			Kind: filterexpr.KindString,
			Ops:  map[filterexpr.Op]string{filterexpr.OpEQ: "EntityType"},
		},
		"last_intent_probability": {
			Kind: filterexpr.KindNumber,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "MinIntentProbability",
				filterexpr.OpLTE: "MaxIntentProbability",
			},
		},
		"updated_at": {
			Kind: filterexpr.KindTimestamp,
			Ops: map[filterexpr.Op]string{
				filterexpr.OpGTE: "UpdatedAfter",
				filterexpr.OpLTE: "UpdatedBefore",
			},
		},
	},
	Order: filterexpr.OrderSchema{
		DefaultPrimary:     "updated_at",
		DefaultPrimaryDesc: true,
		FallbackKey:        "text",
		FallbackDesc:       false,
		Fields: map[string]filterexpr.OrderField{
			"created_at":              {Expr: "created_at"},
			"updated_at":              {Expr: "updated_at"},
			"text":                    {Expr: "text"},
			"intent_id":               {Expr: "intent_id"},
			"last_intent_probability": {Expr: "last_intent_probability"},
		},
	},
}
