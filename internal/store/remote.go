package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

// Remote is a SessionStore backed by the relay's /sessions API. Devices use
// it for bootstrap reads, polling and debounced writes.
type Remote struct {
	base   string
	client *http.Client
}

func NewRemote(baseURL string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{base: strings.TrimRight(baseURL, "/"), client: client}
}

// envelope matches the API's {success, data|error} body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (r *Remote) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: status %d: decode body: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %s: %w", method, path, env.Error, ErrNotFound)
	}
	if !env.Success || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, errors.New(env.Error))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (r *Remote) Create(ctx context.Context, s game.Session) (game.Session, error) {
	var out game.Session
	err := r.do(ctx, http.MethodPost, "/sessions/import", s, &out)
	return out, err
}

func (r *Remote) Get(ctx context.Context, id string, mode Mode) (game.Session, error) {
	path := "/sessions/" + url.PathEscape(id)
	if mode == ModeLite {
		path += "?lite=true"
	}
	var out game.Session
	err := r.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (r *Remote) Update(ctx context.Context, id string, p game.Patch) (game.Session, error) {
	var out game.Session
	err := r.do(ctx, http.MethodPut, "/sessions/"+url.PathEscape(id), p, &out)
	return out, err
}

func (r *Remote) Delete(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

func (r *Remote) List(ctx context.Context, campaignID string) ([]Summary, error) {
	path := "/sessions"
	if campaignID != "" {
		path += "?campaignId=" + url.QueryEscape(campaignID)
	}
	var out []Summary
	err := r.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}
