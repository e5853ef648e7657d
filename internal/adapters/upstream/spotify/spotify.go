// Package spotify busca faixas na Web API do Spotify usando client credentials.
package spotify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

const (
	DefaultAccountsURL = "https://accounts.spotify.com"
	DefaultAPIURL      = "https://api.spotify.com"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AccountsURL  string
	APIURL       string
}

// Client implements both the token fetch and the track search.
type Client struct {
	http   *http.Client
	cfg    Config
	tokens ports.TokenSource
}

var (
	_ ports.TokenFetcher     = (*Client)(nil)
	_ ports.MetadataProvider = (*Client)(nil)
)

func New(httpClient *http.Client, cfg Config) *Client {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.AccountsURL = strings.TrimRight(cfg.AccountsURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{http: httpClient, cfg: cfg}
}

// UseTokens sets the source of bearer tokens for searches, normally a
// services.TokenCache wrapping this same client.
func (c *Client) UseTokens(tokens ports.TokenSource) {
	c.tokens = tokens
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) FetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AccountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out tokenResponse
	if err := upstream.DoJSON(c.http, req, &out); err != nil {
		return "", 0, err
	}
	return out.AccessToken, time.Duration(out.ExpiresIn) * time.Second, nil
}

type searchResponse struct {
	Tracks struct {
		Items []track `json:"items"`
	} `json:"tracks"`
}

type track struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

func (c *Client) Search(ctx context.Context, query string) (domain.Metadata, error) {
	if c.tokens == nil {
		return domain.Metadata{}, fmt.Errorf("%w: no token source configured", domain.ErrTokenUnavailable)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return domain.Metadata{}, err
	}

	params := url.Values{"q": {query}, "type": {"track"}, "limit": {"1"}}
	headers := http.Header{"Authorization": {"Bearer " + token}}

	var out searchResponse
	ok, err := upstream.SearchJSON(ctx, c.http, c.cfg.APIURL+"/v1/search?"+params.Encode(), headers, &out)
	if err != nil {
		return domain.Metadata{}, err
	}
	if !ok || len(out.Tracks.Items) == 0 {
		return domain.NotFound(), nil
	}

	t := out.Tracks.Items[0]
	m := domain.Metadata{
		Found: true,
		Title: t.Name,
		Album: t.Album.Name,
		URL:   t.ExternalURLs.Spotify,
	}
	if len(t.Artists) > 0 {
		m.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		m.Image = t.Album.Images[0].URL
	}
	return m, nil
}
