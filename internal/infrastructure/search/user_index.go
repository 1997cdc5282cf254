// Package search indexes verified users in Elasticsearch for member lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-expense-split/internal/application"
	"github.com/oksasatya/go-expense-split/internal/domain/entity"
)

type UserIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{es: es, index: index}
}

type userDoc struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	College   string `json:"college"`
	Semester  int    `json:"semester"`
	CreatedAt string `json:"created_at"`
}

func (x *UserIndex) Index(ctx context.Context, u *entity.User) error {
	b, err := json.Marshal(userDoc{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		College:   u.College,
		Semester:  u.Semester,
		CreatedAt: u.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: strconv.FormatInt(u.ID, 10),
		Body:       bytes.NewReader(b),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return fmt.Errorf("index user %d: %w", u.ID, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index user %d: %s", u.ID, res.Status())
	}
	return nil
}

// SearchQuery builds the multi_match body used by Search.
func SearchQuery(q string, size int) map[string]any {
	if size <= 0 || size > 50 {
		size = 10
	}
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"type":   "bool_prefix",
				"fields": []string{"username^2", "email", "college"},
			},
		},
		"size": size,
	}
}

func (x *UserIndex) Search(ctx context.Context, q string, size int) ([]application.UserHit, error) {
	b, err := json.Marshal(SearchQuery(q, size))
	if err != nil {
		return nil, err
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := x.es.Search(
		x.es.Search.WithContext(c),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search users: %s", res.Status())
	}
	return decodeHits(res.Body)
}

func decodeHits(r io.Reader) ([]application.UserHit, error) {
	var parsed struct {
		Hits struct {
			Hits []struct {
				Source userDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]application.UserHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, application.UserHit{
			ID:       h.Source.ID,
			Username: h.Source.Username,
			Email:    h.Source.Email,
			College:  h.Source.College,
		})
	}
	return out, nil
}

var _ application.UserIndex = (*UserIndex)(nil)
