package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// maxResponseBytes caps how much of the classifier's reply we read.
const maxResponseBytes = 64 << 10

// HTTPClient calls a classifier exposed as a JSON-over-HTTP endpoint.
//
// CLIENT CREDENTIALS FLOW:
// The classifier is a machine-to-machine dependency, so there is no user to
// redirect anywhere. Instead the service authenticates as itself:
//  1. POST clientID + clientSecret to the token URL.
//  2. Receive a short-lived access token.
//  3. Send "Authorization: Bearer <token>" on every classifier call.
//
// clientcredentials.Config.Client returns an *http.Client that does all three
// and caches the token until it expires.
type HTTPClient struct {
	url    string
	client *http.Client
}

// HTTPConfig describes where the classifier lives and how to authenticate.
// Leave TokenURL empty for an unauthenticated endpoint (e.g. a local stub).
type HTTPConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// NewHTTPClient builds a client. ctx is only used for fetching tokens and
// should outlive the client (usually context.Background()).
func NewHTTPClient(ctx context.Context, cfg HTTPConfig) *HTTPClient {
	client := http.DefaultClient
	if cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(ctx)
	}
	return &HTTPClient{url: cfg.URL, client: client}
}

// Classify POSTs the request as JSON and decodes a Verdict. Deadlines come
// from ctx; any transport error, non-200 status or undecodable body is an
// error.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (*Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("classifier: calling %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: %s returned status %d", c.url, resp.StatusCode)
	}

	var v Verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&v); err != nil {
		return nil, fmt.Errorf("classifier: decoding verdict: %w", err)
	}
	return &v, nil
}
