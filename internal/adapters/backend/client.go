// Package backend is the HTTP client for the record-keeping
// collaborators: session token issuance and the close-session update.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medbridge/consult/internal/core"
	"github.com/medbridge/consult/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchSessionToken exchanges a consultation ID for a one-time room
// credential. Non-2xx responses and malformed payloads both surface as
// errors; the controller wraps them into its token failure type.
func (c *Client) FetchSessionToken(ctx context.Context, id domain.ConsultationID) (*core.TokenGrant, error) {
	url := fmt.Sprintf("%s/api/consultations/%s/token", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var grant core.TokenGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("malformed token payload: %w", err)
	}
	if grant.Token == "" || grant.RoomName == "" {
		return nil, fmt.Errorf("malformed token payload: missing token or room")
	}
	log.Debug().Str("module", "adapters.backend").Str("room", string(grant.RoomName)).Msg("token granted")
	return &grant, nil
}

// CloseSessionRecord marks the consultation ended. The caller treats a
// failure here as non-fatal.
func (c *Client) CloseSessionRecord(ctx context.Context, id domain.ConsultationID) (*core.CloseResult, error) {
	url := fmt.Sprintf("%s/api/consultations/%s/close", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("close endpoint returned %s", resp.Status)
	}

	var res core.CloseResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("malformed close payload: %w", err)
	}
	return &res, nil
}
