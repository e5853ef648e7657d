// Package tmdb busca filmes e séries no The Movie Database.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

const (
	DefaultAPIURL  = "https://api.themoviedb.org"
	posterBaseURL  = "https://image.tmdb.org/t/p/w500"
	websiteBaseURL = "https://www.themoviedb.org"
)

// Kind selects the TMDB search collection.
type Kind string

const (
	Movie Kind = "movie"
	TV    Kind = "tv"
)

type Config struct {
	APIKey string
	APIURL string
}

type Client struct {
	http *http.Client
	cfg  Config
	kind Kind
}

var _ ports.MetadataProvider = (*Client)(nil)

func New(httpClient *http.Client, cfg Config, kind Kind) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{http: httpClient, cfg: cfg, kind: kind}
}

type searchResponse struct {
	Results []struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		Name       string `json:"name"`
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// Search returns the first result, and only when it has a poster.
func (c *Client) Search(ctx context.Context, query string) (domain.Metadata, error) {
	params := url.Values{
		"api_key":       {c.cfg.APIKey},
		"query":         {query},
		"include_adult": {"false"},
	}

	var out searchResponse
	endpoint := fmt.Sprintf("%s/3/search/%s?%s", c.cfg.APIURL, c.kind, params.Encode())
	ok, err := upstream.SearchJSON(ctx, c.http, endpoint, nil, &out)
	if err != nil {
		return domain.Metadata{}, err
	}
	if !ok || len(out.Results) == 0 || out.Results[0].PosterPath == "" {
		return domain.NotFound(), nil
	}

	r := out.Results[0]
	title := r.Title
	if c.kind == TV {
		title = r.Name
	}
	return domain.Metadata{
		Found: true,
		Title: title,
		Image: posterBaseURL + r.PosterPath,
		URL:   fmt.Sprintf("%s/%s/%d", websiteBaseURL, c.kind, r.ID),
	}, nil
}
