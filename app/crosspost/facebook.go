// Package crosspost publishes web-published stories to the social page and
// keeps the per-story social state machine.
package crosspost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	facebookAPIBase = "https://graph.facebook.com/v21.0"
	postTimeout     = 10 * time.Second
)

// Poster submits one message with a link and returns the platform post id.
type Poster interface {
	Post(ctx context.Context, message, link string) (string, error)
}

// APIError is a non-2xx answer from the platform.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("Facebook API %d (code %d): %s", e.HTTPStatus, e.Code, e.Message)
	}
	return fmt.Sprintf("Facebook API %d", e.HTTPStatus)
}

type FacebookPoster struct {
	client  *http.Client
	pageID  string
	token   string
	baseURL string
}

func NewFacebookPoster(pageID, token string) *FacebookPoster {
	return &FacebookPoster{
		client:  &http.Client{Timeout: postTimeout},
		pageID:  pageID,
		token:   token,
		baseURL: facebookAPIBase,
	}
}

type facebookPostRequest struct {
	Message     string `json:"message"`
	Link        string `json:"link"`
	AccessToken string `json:"access_token"`
}

type facebookErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FacebookPoster) Post(ctx context.Context, message, link string) (string, error) {
	payload, err := json.Marshal(facebookPostRequest{Message: message, Link: link, AccessToken: p.token})
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	endpoint := p.baseURL + "/" + url.PathEscape(p.pageID) + "/feed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("failed to post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		var body facebookErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) == nil {
			apiErr.Code = body.Error.Code
			apiErr.Message = body.Error.Message
		}
		return "", apiErr
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.ID == "" {
		return "", errors.New("Facebook API: missing post id in response")
	}
	return result.ID, nil
}
