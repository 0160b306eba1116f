// Package hardcover resolves book metadata from the Hardcover GraphQL API.
package hardcover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

const defaultEndpoint = "https://api.hardcover.app/v1/graphql"

const searchQuery = `
query SearchBooks($query: String!) {
  search(
    query: $query
    query_type: "Audiobook"
    per_page: 1
    page: 1
  ) {
    results
  }
}`

// Config carries credentials and an optional endpoint override.
type Config struct {
	APIKey   string
	Endpoint string
}

// Client implements catalog.MetadataResolver.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("hardcover api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type searchResponse struct {
	Data struct {
		Search struct {
			Results struct {
				Hits []struct {
					Document searchDocument `json:"document"`
				} `json:"hits"`
			} `json:"results"`
		} `json:"search"`
	} `json:"data"`
}

type searchDocument struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Rating       *float64 `json:"rating"`
	RatingsCount *int64   `json:"ratings_count"`
	Slug         *string  `json:"slug"`
	ReviewsCount *int64   `json:"reviews_count"`
}

// Search looks up the best audiobook match for a title and author. It
// returns (nil, nil) when the catalog has no match.
func (c *Client) Search(ctx context.Context, title, author string) (*catalog.BookMetadata, error) {
	payload := graphqlRequest{
		Query:     searchQuery,
		Variables: map[string]any{"query": fmt.Sprintf("%s %s", title, author)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call hardcover: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hardcover returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := parsed.Data.Search.Results.Hits
	if len(hits) == 0 {
		return nil, nil
	}

	doc := hits[0].Document
	id, err := strconv.ParseInt(doc.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse hardcover id %q: %w", doc.ID, err)
	}
	return &catalog.BookMetadata{
		ID:           id,
		Title:        doc.Title,
		Rating:       doc.Rating,
		RatingsCount: doc.RatingsCount,
		Slug:         doc.Slug,
		ReviewsCount: doc.ReviewsCount,
	}, nil
}
