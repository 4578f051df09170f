// Package token is the HTTP client for the external token-holding service.
// It reads token settings and holdings and executes burns; eligibility
// decisions belong to the gate, not here.
package token

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
	"gumball/pkg/platform/sentinel"
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

type tokenResponse struct {
	Decimals uint8 `json:"decimals"`
}

type holdingResponse struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type burnRequest struct {
	Account   string `json:"account"`
	BaseUnits uint64 `json:"base_units"`
}

func (c *Client) GetToken(ctx context.Context, token domain.Identity) (*ports.TokenSettings, error) {
	var resp tokenResponse
	if err := c.get(ctx, "/v1/tokens/"+token.String(), &resp); err != nil {
		return nil, err
	}
	return &ports.TokenSettings{Decimals: resp.Decimals}, nil
}

func (c *Client) GetHolding(ctx context.Context, account domain.Identity) (*ports.Holding, error) {
	var resp holdingResponse
	if err := c.get(ctx, "/v1/accounts/"+account.String(), &resp); err != nil {
		return nil, err
	}
	tok, err := domain.ParseIdentity(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("token service returned malformed token identity: %w", err)
	}
	owner, err := domain.ParseIdentity(resp.Owner)
	if err != nil {
		return nil, fmt.Errorf("token service returned malformed owner identity: %w", err)
	}
	return &ports.Holding{Token: tok, Owner: owner, Balance: resp.Balance}, nil
}

func (c *Client) Burn(ctx context.Context, token, account domain.Identity, baseUnits uint64) error {
	body, err := json.Marshal(burnRequest{Account: account.String(), BaseUnits: baseUnits})
	if err != nil {
		return fmt.Errorf("encode burn request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/tokens/"+token.String()+"/burn", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build burn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("token service burn: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("token service %s: %w", path, sentinel.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("token service %s: %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	return nil
}
