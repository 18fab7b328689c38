package rpc

import (
	"context"

	"expertdir/apps/recommender/internal/recommend"
)

// Handler runs one method with arguments already checked for arity.
type Handler func(ctx context.Context, args []string) (any, error)

type Table map[Method]Handler

type KeywordExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

type Recommender interface {
	Recommend(ctx context.Context, question string) (recommend.Recommendation, error)
}

type Index interface {
	Add(ctx context.Context, skills, email string) error
	Update(ctx context.Context, skills, email string) error
	Delete(ctx context.Context, email string) error
}

func NewTable(kw KeywordExtractor, rec Recommender, idx Index) Table {
	return Table{
		MethodExtractKeywords: func(ctx context.Context, args []string) (any, error) {
			return kw.Extract(ctx, args[0])
		},
		MethodRecommend: func(ctx context.Context, args []string) (any, error) {
			return rec.Recommend(ctx, args[0])
		},
		MethodAdd: func(ctx context.Context, args []string) (any, error) {
			return nil, idx.Add(ctx, args[0], args[1])
		},
		MethodUpdate: func(ctx context.Context, args []string) (any, error) {
			return nil, idx.Update(ctx, args[0], args[1])
		},
		MethodDelete: func(ctx context.Context, args []string) (any, error) {
			return nil, idx.Delete(ctx, args[0])
		},
	}
}
