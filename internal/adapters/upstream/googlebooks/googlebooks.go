// Package googlebooks busca livros na API de volumes do Google Books.
package googlebooks

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

const DefaultAPIURL = "https://www.googleapis.com"

type Config struct {
	APIKey string
	APIURL string
}

type Client struct {
	http *http.Client
	cfg  Config
}

var _ ports.MetadataProvider = (*Client)(nil)

func New(httpClient *http.Client, cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{http: httpClient, cfg: cfg}
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title      string `json:"title"`
			InfoLink   string `json:"infoLink"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Search returns the first volume, and only when it has a thumbnail.
func (c *Client) Search(ctx context.Context, query string) (domain.Metadata, error) {
	params := url.Values{
		"q":          {query},
		"key":        {c.cfg.APIKey},
		"maxResults": {"1"},
	}

	var out volumesResponse
	ok, err := upstream.SearchJSON(ctx, c.http, c.cfg.APIURL+"/books/v1/volumes?"+params.Encode(), nil, &out)
	if err != nil {
		return domain.Metadata{}, err
	}
	if !ok || len(out.Items) == 0 || out.Items[0].VolumeInfo.ImageLinks.Thumbnail == "" {
		return domain.NotFound(), nil
	}

	info := out.Items[0].VolumeInfo
	return domain.Metadata{
		Found: true,
		Title: info.Title,
		Image: strings.Replace(info.ImageLinks.Thumbnail, "http://", "https://", 1),
		URL:   info.InfoLink,
	}, nil
}
