package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

const DefaultClassName = "ExpertSnippet"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

func snippetProperties() []*models.Property {
	return []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		// Field tokenization keeps the whole value as one token, so owner
		// filters match exactly.
		{
			Name:         "ownerEmail",
			DataType:     []string{"text"},
			Tokenization: models.PropertyTokenizationField,
		},
		{
			Name:         "snippetId",
			DataType:     []string{"text"},
			Tokenization: models.PropertyTokenizationField,
		},
	}
}

// EnsureSchema creates the snippet class with cosine HNSW distance, or adds
// any property an older class is missing.
func EnsureSchema(ctx context.Context, client SchemaClient, className string) error {
	if className == "" {
		className = DefaultClassName
	}
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := snippetProperties()

	if !exists {
		class := &models.Class{
			Class:           className,
			Description:     "A sentence of an expert's skills",
			Vectorizer:      "none",
			VectorIndexType: "hnsw",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: properties,
		}
		return client.CreateClass(ctx, class)
	}

	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
