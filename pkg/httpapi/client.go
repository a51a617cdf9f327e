package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daviddao/potluck/pkg/apperr"
	"github.com/daviddao/potluck/pkg/model"
)

// Client calls a potluck server on behalf of one bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for baseURL. A nil httpClient gets a 15s
// timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error.Code == "" {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return apperr.New(eb.Error.Code, eb.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func docPath(id, suffix string) string {
	return "/api/documents/" + url.PathEscape(id) + suffix
}

// Invite invites email to documentID.
func (c *Client) Invite(ctx context.Context, documentID, email, message string) (model.Invitation, error) {
	var out struct {
		Invitation model.Invitation `json:"invitation"`
	}
	err := c.do(ctx, http.MethodPost, docPath(documentID, "/invitations"), InviteRequest{Email: email, Message: message}, &out)
	return out.Invitation, err
}

// DocumentInvitations lists the invitation history of documentID.
func (c *Client) DocumentInvitations(ctx context.Context, documentID string) ([]model.Invitation, error) {
	var out struct {
		Invitations []model.Invitation `json:"invitations"`
	}
	err := c.do(ctx, http.MethodGet, docPath(documentID, "/invitations"), nil, &out)
	return out.Invitations, err
}

// Respond accepts or declines invitationID.
func (c *Client) Respond(ctx context.Context, invitationID string, action model.ResponseAction) (model.Invitation, error) {
	if _, ok := action.TargetStatus(); !ok {
		return model.Invitation{}, apperr.Newf(apperr.CodeInvalidArgument, "unknown action %q", action)
	}
	var out struct {
		Invitation model.Invitation `json:"invitation"`
	}
	path := "/api/invitations/" + url.PathEscape(invitationID) + "/" + string(action)
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out.Invitation, err
}

// MyInvitations lists the caller's pending invitations.
func (c *Client) MyInvitations(ctx context.Context) ([]model.Invitation, error) {
	var out struct {
		Invitations []model.Invitation `json:"invitations"`
	}
	err := c.do(ctx, http.MethodGet, "/api/me/invitations", nil, &out)
	return out.Invitations, err
}

// Heartbeat marks the caller active on documentID.
func (c *Client) Heartbeat(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodPost, docPath(documentID, "/presence"), nil, nil)
}

// Presence lists active users on documentID.
func (c *Client) Presence(ctx context.Context, documentID string, excludeSelf bool) ([]model.Presence, error) {
	var out struct {
		ActiveUsers []model.Presence `json:"active_users"`
	}
	path := docPath(documentID, "/presence")
	if excludeSelf {
		path += "?exclude_self=true"
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.ActiveUsers, err
}

// AppendActivity logs action on documentID.
func (c *Client) AppendActivity(ctx context.Context, documentID, action, details string) (model.Activity, error) {
	var out struct {
		Activity model.Activity `json:"activity"`
	}
	err := c.do(ctx, http.MethodPost, docPath(documentID, "/activity"), ActivityRequest{Action: action, Details: details}, &out)
	return out.Activity, err
}

// Snapshot fetches the sync snapshot of documentID.
func (c *Client) Snapshot(ctx context.Context, documentID string) (model.Snapshot, error) {
	var snap model.Snapshot
	err := c.do(ctx, http.MethodGet, docPath(documentID, "/sync"), nil, &snap)
	return snap, err
}
