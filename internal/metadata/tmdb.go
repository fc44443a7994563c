// Package metadata talks to the TMDB v3 API. All calls are context-aware and
// pass through a client-side rate limiter so bulk cache population stays
// inside the upstream quota.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/cinerec/cinerec/internal/config"
	"github.com/cinerec/cinerec/pkg/models"
)

// Provider is the upstream metadata surface the cache store depends on.
// Implemented by Client; tests substitute in-memory fakes.
type Provider interface {
	GetDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error)
	GetKeywords(ctx context.Context, tmdbID int64) ([]Keyword, error)
	GetPopular(ctx context.Context, page int) ([]MovieSummary, error)
	GetTrending(ctx context.Context, window string, page int) ([]MovieSummary, error)
	Discover(ctx context.Context, genreIDs []int64, page int) ([]MovieSummary, error)
	Search(ctx context.Context, query string, page int) ([]MovieSummary, error)
}

// MovieDetails is a full movie record with credits appended.
type MovieDetails struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	Popularity   float64 `json:"popularity"`
	Genres       []Genre `json:"genres"`
	Credits      Credits `json:"credits"`
}

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

type CastMember struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type CrewMember struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Job  string `json:"job"`
}

// MovieSummary is the compact list-endpoint shape.
type MovieSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	VoteAverage float64 `json:"vote_average"`
	Popularity  float64 `json:"popularity"`
	GenreIDs    []int64 `json:"genre_ids"`
}

type listResponse struct {
	Page    int            `json:"page"`
	Results []MovieSummary `json:"results"`
}

type keywordsResponse struct {
	ID       int64     `json:"id"`
	Keywords []Keyword `json:"keywords"`
}

// Client is the HTTP TMDB client.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

func NewClient(cfg config.TMDBConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		logger:  logger,
	}
}

// GetDetails fetches a movie with credits in one round trip.
func (c *Client) GetDetails(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	var details MovieDetails
	params := url.Values{"append_to_response": {"credits"}}
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetKeywords fetches the keyword list for a movie.
func (c *Client) GetKeywords(ctx context.Context, tmdbID int64) ([]Keyword, error) {
	var resp keywordsResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/keywords", tmdbID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Keywords, nil
}

func (c *Client) GetPopular(ctx context.Context, page int) ([]MovieSummary, error) {
	var resp listResponse
	params := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.get(ctx, "/movie/popular", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) GetTrending(ctx context.Context, window string, page int) ([]MovieSummary, error) {
	if window != "day" && window != "week" {
		window = "week"
	}
	var resp listResponse
	params := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.get(ctx, "/trending/movie/"+window, params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Discover lists movies filtered by genre, ordered by popularity upstream.
func (c *Client) Discover(ctx context.Context, genreIDs []int64, page int) ([]MovieSummary, error) {
	params := url.Values{
		"page":    {strconv.Itoa(page)},
		"sort_by": {"popularity.desc"},
	}
	if len(genreIDs) > 0 {
		ids := make([]byte, 0, len(genreIDs)*4)
		for i, id := range genreIDs {
			if i > 0 {
				ids = append(ids, ',')
			}
			ids = strconv.AppendInt(ids, id, 10)
		}
		params.Set("with_genres", string(ids))
	}
	var resp listResponse
	if err := c.get(ctx, "/discover/movie", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) Search(ctx context.Context, query string, page int) ([]MovieSummary, error) {
	var resp listResponse
	params := url.Values{
		"query": {query},
		"page":  {strconv.Itoa(page)},
	}
	if err := c.get(ctx, "/search/movie", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WithField("path", path).Warn("TMDB rate limit exceeded")
		return fmt.Errorf("%w: upstream rate limited", models.ErrUpstreamUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
