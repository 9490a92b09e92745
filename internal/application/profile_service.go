package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
	"github.com/oksasatya/campus-identity/pkg/helpers"
)

// GetProfile returns the identity, served from the Redis cache when possible.
func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.Identity, error) {
	if s.Redis != nil {
		var cached entity.Identity
		if ok, err := helpers.RedisGetJSON(ctx, s.Redis, helpers.IdentityCacheKey(userID), &cached); err == nil && ok {
			return &cached, nil
		}
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, entity.ErrIdentityNotFound
	}
	s.cacheIdentity(ctx, u)
	return u, nil
}

// UpdateProfileInput holds optional profile changes; nil fields are left alone.
// The verified flag is not part of it.
type UpdateProfileInput struct {
	Name         *string
	Institution  *string
	FieldOfStudy *string
	Year         *int
	Bio          *string
	Anonymous    *bool
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.Identity, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, entity.ErrIdentityNotFound
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Institution != nil {
		u.Institution = strings.TrimSpace(*in.Institution)
	}
	if in.FieldOfStudy != nil {
		u.FieldOfStudy = strings.TrimSpace(*in.FieldOfStudy)
	}
	if in.Year != nil && *in.Year >= 1 {
		u.Year = *in.Year
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if in.Anonymous != nil {
		u.Anonymous = *in.Anonymous
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}

	if s.Redis != nil {
		key := helpers.SessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.Del(ctx, helpers.IdentityCacheKey(u.ID))
		if n, _ := s.Redis.Exists(ctx, key).Result(); n > 0 {
			pipe.HSet(ctx, key, map[string]any{"name": u.Name, "updated_at": nowRFC3339()})
		}
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	_ = s.indexIdentity(ctx, u)
	return u, nil
}

func (s *Service) cacheIdentity(ctx context.Context, u *entity.Identity) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisSetJSON(ctx, s.Redis, helpers.IdentityCacheKey(u.ID), u, identityCacheTTL); err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Debug("cache identity failed")
	}
}

func (s *Service) indexIdentity(ctx context.Context, u *entity.Identity) error {
	if s.ES == nil || s.ESIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":             u.ID,
		"email":          u.Email,
		"name":           u.Name,
		"institution":    u.Institution,
		"field_of_study": u.FieldOfStudy,
		"year":           u.Year,
		"verified":       u.Verified,
		"anonymous":      u.Anonymous,
		"created_at":     u.CreatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESIndex, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// SearchResult is the public view of an indexed identity. Anonymous
// identities are never returned.
type SearchResult struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Institution  string `json:"institution"`
	FieldOfStudy string `json:"field_of_study"`
	Year         int    `json:"year"`
	Verified     bool   `json:"verified"`
}

func searchQuery(q string, size int) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  q,
						"fields": []string{"name^2", "institution", "field_of_study", "email"},
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"anonymous": false}},
				},
			},
		},
		"size": size,
	}
}

// SearchIdentities performs a multi_match search over the identity directory.
func (s *Service) SearchIdentities(ctx context.Context, q string, size int) ([]SearchResult, error) {
	if s.ES == nil || s.ESIndex == "" {
		return []SearchResult{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	b, _ := json.Marshal(searchQuery(q, size))

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESIndex),
		s.ES.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source SearchResult `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

const identityIndexMapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "email":          {"type": "keyword"},
      "name":           {"type": "text"},
      "institution":    {"type": "text"},
      "field_of_study": {"type": "text"},
      "year":           {"type": "integer"},
      "verified":       {"type": "boolean"},
      "anonymous":      {"type": "boolean"},
      "created_at":     {"type": "date"}
    }
  }
}`

// EnsureIndex creates the identity index with its mapping when it is missing.
func (s *Service) EnsureIndex(ctx context.Context) error {
	if s.ES == nil || s.ESIndex == "" {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{s.ESIndex}}.Do(c, s.ES)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: s.ESIndex, Body: strings.NewReader(identityIndexMapping)}.Do(c, s.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es create index: %s", res.Status())
	}
	s.Logger.WithField("index", s.ESIndex).Info("identity index created")
	return nil
}
