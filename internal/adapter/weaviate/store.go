package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/vector"
)

const pageSize = 100

// snippetNamespace seeds the name-based object UUIDs.
var snippetNamespace = uuid.MustParse("6f1d5a3e-2c4b-4e8f-9a7d-1b3c5e7f9a2d")

type Store struct {
	client *weaviate.Client
	class  string
}

func NewStore(client *weaviate.Client, className string) *Store {
	if className == "" {
		className = vector.DefaultClassName
	}
	return &Store{client: client, class: className}
}

func objectID(owner, snippetID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(snippetNamespace, []byte(owner+"/"+snippetID)).String())
}

func (s *Store) Add(ctx context.Context, snippets []index.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	objects := make([]*models.Object, 0, len(snippets))
	for _, sn := range snippets {
		if sn.Owner == "" {
			return index.ErrMissingOwner
		}
		objects = append(objects, &models.Object{
			Class: s.class,
			ID:    objectID(sn.Owner, sn.ID),
			Properties: map[string]interface{}{
				"content":    sn.Content,
				"ownerEmail": sn.Owner,
				"snippetId":  sn.ID,
			},
			Vector: models.C11yVector(sn.Vector),
		})
	}

	res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func ownerFilter(owner string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"ownerEmail"}).
		WithOperator(filters.Equal).
		WithValueString(owner)
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]index.Snippet, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "ownerEmail"},
		{Name: "snippetId"},
	}

	var snippets []index.Snippet
	for offset := 0; ; offset += pageSize {
		res, err := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithWhere(ownerFilter(owner)).
			WithLimit(pageSize).
			WithOffset(offset).
			WithFields(fields...).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
		}

		page := s.rows(res.Data)
		for _, props := range page {
			snippets = append(snippets, index.Snippet{
				ID:      str(props["snippetId"]),
				Owner:   str(props["ownerEmail"]),
				Content: str(props["content"]),
			})
		}
		if len(page) < pageSize {
			return snippets, nil
		}
	}
}

func (s *Store) DeleteByOwner(ctx context.Context, owner string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.class).
		WithOutput("minimal").
		WithWhere(ownerFilter(owner)).
		Do(ctx)
	return err
}

func (s *Store) Query(ctx context.Context, vectors [][]float32, k int) ([][]index.Neighbor, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "ownerEmail"},
		{Name: "snippetId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	out := make([][]index.Neighbor, len(vectors))
	for i, vec := range vectors {
		nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

		res, err := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithNearVector(nearVector).
			WithLimit(k).
			WithFields(fields...).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
		}

		for _, props := range s.rows(res.Data) {
			n := index.Neighbor{
				ID:      str(props["snippetId"]),
				Owner:   str(props["ownerEmail"]),
				Content: str(props["content"]),
			}
			if additional, ok := props["_additional"].(map[string]interface{}); ok {
				n.Distance = number(additional["distance"])
			}
			out[i] = append(out[i], n)
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[s.class].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	return int(number(meta["count"])), nil
}

func (s *Store) rows(data map[string]models.JSONObject) []map[string]interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[s.class].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// number accepts the float or string forms Weaviate uses for numeric
// additional fields.
func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
