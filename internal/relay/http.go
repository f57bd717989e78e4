package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ciphersync/internal/domain"
)

// maxBody caps how much of a response body is read.
const maxBody = 64 << 20

// StatusError reports a non-2xx relay response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay %s %s: %s", strings.ToLower(e.Method), e.URL, e.Status)
}

// Unwrap makes client errors match domain.ErrRejected.
func (e *StatusError) Unwrap() error {
	if e.Code >= 400 && e.Code < 500 {
		return domain.ErrRejected
	}
	return nil
}

// HTTP is a relay client rooted at Base.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for the relay at base.
func NewHTTP(base string) *HTTP {
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

func (c *HTTP) post(ctx context.Context, path, token string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, c.Base+path, token, in, out)
}

func (c *HTTP) getJSON(ctx context.Context, path, token string, out any) error {
	return c.doJSON(ctx, http.MethodGet, c.Base+path, token, nil, out)
}

func (c *HTTP) doJSON(ctx context.Context, method, u, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	resp, err := c.do(ctx, method, u, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("relay %s %s: decode: %w", strings.ToLower(method), u, err)
	}
	return nil
}

func (c *HTTP) getBytes(ctx context.Context, path, token string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.Base+path, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// do sends the request and returns the response when its status is 2xx.
func (c *HTTP) do(ctx context.Context, method, u, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		return nil, &StatusError{Method: method, URL: u, Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func inboxPath(owned domain.OwnedIdentity, parts ...string) string {
	p := "/v1/inbox/" + url.PathEscape(owned.String()) + "/messages"
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// FetchMessages lists up to limit queued messages of owned.
func (c *HTTP) FetchMessages(
	ctx context.Context,
	token string,
	owned domain.OwnedIdentity,
	limit int,
) ([]domain.ServerMessage, error) {
	p := inboxPath(owned)
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []domain.ServerMessage
	if err := c.getJSON(ctx, p, token, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// FetchExtendedPayload downloads the extended payload of one message.
func (c *HTTP) FetchExtendedPayload(
	ctx context.Context,
	token string,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) ([]byte, error) {
	return c.getBytes(ctx, inboxPath(owned, uid.String(), "extended"), token)
}

// FetchAttachmentRange downloads rng of one attachment.
func (c *HTTP) FetchAttachmentRange(
	ctx context.Context,
	token string,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
	index int,
	rng domain.ByteRange,
) ([]byte, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(rng.Offset, 10))
	q.Set("length", strconv.FormatInt(rng.Length, 10))
	p := inboxPath(owned, uid.String(), "attachments", strconv.Itoa(index)) + "?" + q.Encode()
	return c.getBytes(ctx, p, token)
}

// DeleteMessage removes one message from the relay queue.
func (c *HTTP) DeleteMessage(
	ctx context.Context,
	token string,
	owned domain.OwnedIdentity,
	uid domain.MessageUID,
) error {
	return c.doJSON(ctx, http.MethodDelete, c.Base+inboxPath(owned, uid.String()), token, nil, nil)
}

// SendQuery transmits q and returns the relay's response.
func (c *HTTP) SendQuery(ctx context.Context, token string, q domain.PendingServerQuery) ([]byte, error) {
	var out QueryResponse
	err := c.post(ctx, "/v1/queries", token, QueryRequest{
		CorrelationID: q.CorrelationID,
		Owned:         q.OwnedIdentity,
		Kind:          q.Kind,
		Request:       q.Request,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Response, nil
}

// RegisterPush registers cfg with the relay.
func (c *HTTP) RegisterPush(ctx context.Context, token string, cfg domain.PushConfiguration) error {
	return c.doJSON(ctx, http.MethodPut, c.Base+"/v1/push", token, cfg, nil)
}

// FetchWellKnown downloads the configuration of server, which need not be
// this client's Base.
func (c *HTTP) FetchWellKnown(ctx context.Context, server domain.ServerURL) (domain.WellKnownEntry, error) {
	var doc WellKnownDocument
	base := strings.TrimRight(server.String(), "/")
	if err := c.doJSON(ctx, http.MethodGet, base+WellKnownPath, "", nil, &doc); err != nil {
		return domain.WellKnownEntry{}, err
	}
	return doc.Entry(server), nil
}

// Deliver enqueues a message on a development relay.
func (c *HTTP) Deliver(ctx context.Context, adminToken string, req DeliverRequest) (domain.MessageUID, error) {
	var out DeliverResponse
	if err := c.post(ctx, "/v1/admin/deliver", adminToken, req, &out); err != nil {
		return "", err
	}
	return out.UID, nil
}

// Compile-time assertions.
var (
	_ domain.InboxTransport   = (*HTTP)(nil)
	_ domain.QueryTransport   = (*HTTP)(nil)
	_ domain.PushTransport    = (*HTTP)(nil)
	_ domain.WellKnownFetcher = (*HTTP)(nil)
)
