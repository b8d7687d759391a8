package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Gateway is the boundary to the community backend. Every method is a
// single round-trip; implementations must bound each call (the store
// and controller treat a timeout exactly like a network failure).
type Gateway interface {
	ListPosts(ctx context.Context, q Query) ([]*Post, Page, error)
	CreatePost(ctx context.Context, draft PostDraft) (*Post, error)
	UpdatePost(ctx context.Context, postID string, patch PostPatch) (*Post, error)
	DeletePost(ctx context.Context, postID string) error

	ToggleLike(ctx context.Context, postID string) (LikeResult, error)
	AddComment(ctx context.Context, postID, content string) (*Comment, error)
	AddReply(ctx context.Context, postID, commentID, content string) (*Comment, error)
	ToggleCommentLike(ctx context.Context, postID, commentID string) (LikeResult, error)

	SavePost(ctx context.Context, postID string) error
	UnsavePost(ctx context.Context, postID string) error
	FollowUser(ctx context.Context, userID string) error
	UnfollowUser(ctx context.Context, userID string) error
	MutePost(ctx context.Context, postID string) error
	UnmutePost(ctx context.Context, postID string) error
	ReportPost(ctx context.Context, postID, reason string) error

	ListOnlineMembers(ctx context.Context) ([]PresenceRecord, error)
	SetUserStatus(ctx context.Context, status string) error
}

// TokenSource returns the current bearer token, or "" when the session
// is not established yet.
type TokenSource func() string

const (
	dialTimeout = 10 * time.Second
	reqTimeout  = 30 * time.Second
)

type authedTransport struct {
	token TokenSource
	base  http.RoundTripper
}

func (t *authedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != nil {
		if tok := t.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return t.base.RoundTrip(req)
}

// HTTPGateway is the production Gateway talking JSON over HTTP to the
// community API. It is also the single ingestion point: wire payloads
// are normalized into canonical entities before they leave this type.
type HTTPGateway struct {
	base   string
	client *http.Client
	norm   *Normalizer
}

// NewHTTPGateway builds a gateway against baseURL (no trailing slash
// required). currentUser is the authenticated user's id, used to derive
// the viewer-relative liked flags during normalization.
func NewHTTPGateway(baseURL, currentUser string, token TokenSource) *HTTPGateway {
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &HTTPGateway{
		base: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: &authedTransport{
				token: token,
				base:  &http.Transport{DialContext: dialer.DialContext},
			},
			Timeout: reqTimeout,
		},
		norm: NewNormalizer(currentUser),
	}
}

// envelope is the uniform response wrapper used by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do issues one request and decodes the envelope's data into out. A
// nil body sends no payload; a nil out discards the data.
func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Msg: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, reader)
	if err != nil {
		return transportErr(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return transportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return serverErr(resp.StatusCode, "malformed response body")
	}

	if resp.StatusCode >= 400 || !env.Success {
		return statusError(resp.StatusCode, env.Message)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return serverErr(resp.StatusCode, fmt.Sprintf("decode response: %v", err))
		}
	}
	return nil
}

// statusError maps an HTTP status to the failure taxonomy.
func statusError(status int, msg string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindAuthExpired, Status: status, Msg: msg}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Status: status, Msg: msg}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, Status: status, Msg: msg}
	default:
		return serverErr(status, msg)
	}
}

func (g *HTTPGateway) ListPosts(ctx context.Context, q Query) ([]*Post, Page, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("sort", q.Sort)
	if q.Category != "" && q.Category != CategoryAll {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}

	var data struct {
		Posts      []wirePost `json:"posts"`
		Pagination wirePage   `json:"pagination"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/v1/posts?"+v.Encode(), nil, &data); err != nil {
		return nil, Page{}, err
	}
	return g.norm.Posts(data.Posts), data.Pagination.page(), nil
}

func (g *HTTPGateway) CreatePost(ctx context.Context, draft PostDraft) (*Post, error) {
	var data struct {
		Post wirePost `json:"post"`
	}
	if err := g.do(ctx, http.MethodPost, "/api/v1/posts", draft, &data); err != nil {
		return nil, err
	}
	return g.norm.Post(data.Post), nil
}

func (g *HTTPGateway) UpdatePost(ctx context.Context, postID string, patch PostPatch) (*Post, error) {
	var data struct {
		Post wirePost `json:"post"`
	}
	if err := g.do(ctx, http.MethodPut, "/api/v1/posts/"+url.PathEscape(postID), patch, &data); err != nil {
		return nil, err
	}
	return g.norm.Post(data.Post), nil
}

func (g *HTTPGateway) DeletePost(ctx context.Context, postID string) error {
	return g.do(ctx, http.MethodDelete, "/api/v1/posts/"+url.PathEscape(postID), nil, nil)
}

func (g *HTTPGateway) ToggleLike(ctx context.Context, postID string) (LikeResult, error) {
	var res LikeResult
	err := g.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/like", nil, &res)
	return res, err
}

func (g *HTTPGateway) AddComment(ctx context.Context, postID, content string) (*Comment, error) {
	var data struct {
		Comment wireComment `json:"comment"`
	}
	body := map[string]string{"content": content}
	if err := g.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/comments", body, &data); err != nil {
		return nil, err
	}
	return g.norm.Comment(data.Comment), nil
}

func (g *HTTPGateway) AddReply(ctx context.Context, postID, commentID, content string) (*Comment, error) {
	var data struct {
		Comment wireComment `json:"comment"`
	}
	body := map[string]string{"content": content}
	path := fmt.Sprintf("/api/v1/posts/%s/comments/%s/replies", url.PathEscape(postID), url.PathEscape(commentID))
	if err := g.do(ctx, http.MethodPost, path, body, &data); err != nil {
		return nil, err
	}
	return g.norm.Comment(data.Comment), nil
}

func (g *HTTPGateway) ToggleCommentLike(ctx context.Context, postID, commentID string) (LikeResult, error) {
	var res LikeResult
	path := fmt.Sprintf("/api/v1/posts/%s/comments/%s/like", url.PathEscape(postID), url.PathEscape(commentID))
	err := g.do(ctx, http.MethodPost, path, nil, &res)
	return res, err
}

func (g *HTTPGateway) SavePost(ctx context.Context, postID string) error {
	return g.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/save", nil, nil)
}

func (g *HTTPGateway) UnsavePost(ctx context.Context, postID string) error {
	return g.do(ctx, http.MethodDelete, "/api/v1/posts/"+url.PathEscape(postID)+"/save", nil, nil)
}

func (g *HTTPGateway) FollowUser(ctx context.Context, userID string) error {
	return g.do(ctx, http.MethodPost, "/api/v1/users/"+url.PathEscape(userID)+"/follow", nil, nil)
}

func (g *HTTPGateway) UnfollowUser(ctx context.Context, userID string) error {
	return g.do(ctx, http.MethodDelete, "/api/v1/users/"+url.PathEscape(userID)+"/follow", nil, nil)
}

func (g *HTTPGateway) MutePost(ctx context.Context, postID string) error {
	return g.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/mute", nil, nil)
}

func (g *HTTPGateway) UnmutePost(ctx context.Context, postID string) error {
	return g.do(ctx, http.MethodDelete, "/api/v1/posts/"+url.PathEscape(postID)+"/mute", nil, nil)
}

func (g *HTTPGateway) ReportPost(ctx context.Context, postID, reason string) error {
	body := map[string]string{"reason": reason}
	return g.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/report", body, nil)
}

func (g *HTTPGateway) ListOnlineMembers(ctx context.Context) ([]PresenceRecord, error) {
	var data struct {
		Members []wireMember `json:"members"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/v1/members/online", nil, &data); err != nil {
		return nil, err
	}
	return g.norm.Members(data.Members), nil
}

func (g *HTTPGateway) SetUserStatus(ctx context.Context, status string) error {
	body := map[string]string{"status": status}
	return g.do(ctx, http.MethodPost, "/api/v1/users/status", body, nil)
}
