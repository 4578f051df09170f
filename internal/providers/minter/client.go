// Package minter is the HTTP client for the external minting service: tree
// allocation, collection namespaces, and the actual item issuance. Failures
// are surfaced verbatim; this layer never reinterprets the service's answers.
package minter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gumball/internal/machine/ports"
	"gumball/pkg/domain"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type createTreeRequest struct {
	Creator       string `json:"creator"`
	MaxDepth      uint32 `json:"max_depth"`
	MaxBufferSize uint32 `json:"max_buffer_size"`
}

type createCollectionRequest struct {
	Creator string `json:"creator"`
}

type createCollectionResponse struct {
	Collection string `json:"collection"`
}

type mintRequest struct {
	Creator    string `json:"creator"`
	LeafOwner  string `json:"leaf_owner"`
	Name       string `json:"name"`
	Symbol     string `json:"symbol"`
	URI        string `json:"uri"`
	Collection string `json:"collection,omitempty"`
}

func (c *Client) CreateTree(ctx context.Context, creator domain.Identity, params ports.TreeParams) error {
	req := createTreeRequest{
		Creator:       creator.String(),
		MaxDepth:      params.MaxDepth,
		MaxBufferSize: params.MaxBufferSize,
	}
	return c.post(ctx, "/v1/trees", req, nil)
}

func (c *Client) CreateCollection(ctx context.Context, creator domain.Identity) (domain.Identity, error) {
	var resp createCollectionResponse
	if err := c.post(ctx, "/v1/collections", createCollectionRequest{Creator: creator.String()}, &resp); err != nil {
		return domain.Identity{}, err
	}
	collection, err := domain.ParseIdentity(resp.Collection)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("minting service returned malformed collection: %w", err)
	}
	return collection, nil
}

func (c *Client) MintToCollection(ctx context.Context, req ports.MintRequest) error {
	// The request is assembled completely before the single invoke; nothing
	// mutates it afterwards.
	wire := mintRequest{
		Creator:   req.Creator.String(),
		LeafOwner: req.LeafOwner.String(),
		Name:      req.Metadata.Name,
		Symbol:    req.Metadata.Symbol,
		URI:       req.Metadata.URI,
	}
	if req.Collection != nil {
		wire.Collection = req.Collection.String()
	}
	return c.post(ctx, "/v1/mints", wire, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode minting request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build minting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("minting service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("minting service %s: %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode minting response: %w", err)
		}
	}
	return nil
}
