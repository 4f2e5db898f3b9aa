package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/arklight/photo_restoration/internal/models"
)

// Search runs a fuzzy match over image names in the given index.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Image, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{
					"query":     query,
					"fuzziness": "AUTO",
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Image `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	images := make([]models.Image, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		images[i] = hit.Source
	}
	return r.Hits.Total.Value, images, nil
}

// IndexImage writes a restored image document, keyed by the image id.
func IndexImage(ctx context.Context, es *elasticsearch.Client, index string, img *models.Image) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("encode image doc: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(img.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index image: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index image: %s", res.Status())
	}
	return nil
}
