package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sekolahkita/internal/apperr"
	"sekolahkita/internal/query"
)

// PostgREST talks to the hosted data service's REST interface
// (/rest/v1/{collection}).
type PostgREST struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	// Retries is the number of extra attempts made after a transport failure.
	Retries int
	Backoff time.Duration

	token string
}

// NewPostgREST creates a client for baseURL authenticated with the project's
// anon (or service) key.
func NewPostgREST(baseURL, apiKey string) *PostgREST {
	return &PostgREST{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Backoff: 200 * time.Millisecond,
	}
}

// WithAccessToken returns a copy that sends token as the bearer credential.
func (p *PostgREST) WithAccessToken(token string) Client {
	cp := *p
	cp.token = token
	return &cp
}

func (p *PostgREST) Query(ctx context.Context, q query.Query, dest any) error {
	params, err := encodeFilters(q.Where)
	if err != nil {
		return err
	}
	sel := "*"
	if len(q.Columns) > 0 {
		sel = strings.Join(q.Columns, ",")
	}
	params.Set("select", sel)
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, s := range q.Order {
			dir := "asc"
			if s.Desc {
				dir = "desc"
			}
			parts = append(parts, s.Field+"."+dir)
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Window != nil {
		params.Set("offset", strconv.Itoa(q.Window.Start))
		params.Set("limit", strconv.Itoa(q.Window.Limit()))
	}

	body, err := p.do(ctx, http.MethodGet, q.Collection, params, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Collection, err)
	}
	return nil
}

func (p *PostgREST) Write(ctx context.Context, collection string, records any, conflictKey ...string) error {
	rows, err := toRows(records)
	if err != nil {
		return err
	}
	if err := validateWrite(collection, rows, conflictKey); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "encode %s records", collection)
	}
	params := url.Values{}
	prefer := "return=minimal"
	if len(conflictKey) > 0 {
		params.Set("on_conflict", strings.Join(conflictKey, ","))
		prefer = "resolution=merge-duplicates,return=minimal"
	}
	// Bulk inserts need every object to share one key set.
	params.Set("columns", strings.Join(columns(rows), ","))
	_, err = p.do(ctx, http.MethodPost, collection, params, payload, map[string]string{"Prefer": prefer})
	return err
}

func (p *PostgREST) Update(ctx context.Context, q query.Query, patch map[string]any) (int, error) {
	if len(q.Where) == 0 {
		return 0, apperr.Validation("update %s without a filter", q.Collection)
	}
	rows, err := toRows(patch)
	if err != nil {
		return 0, err
	}
	if err := validateWrite(q.Collection, rows, nil); err != nil {
		return 0, err
	}
	params, err := encodeFilters(q.Where)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(rows[0])
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, err, "encode %s patch", q.Collection)
	}
	// The changed rows come back so their count is known.
	params.Set("select", q.Where[0][0].Field)
	body, err := p.do(ctx, http.MethodPatch, q.Collection, params, payload, map[string]string{"Prefer": "return=representation"})
	if err != nil {
		return 0, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return 0, nil
	}
	var changed []json.RawMessage
	if err := json.Unmarshal(body, &changed); err != nil {
		return 0, fmt.Errorf("decode %s update: %w", q.Collection, err)
	}
	return len(changed), nil
}

func (p *PostgREST) do(ctx context.Context, method, collection string, params url.Values, payload []byte, headers map[string]string) ([]byte, error) {
	endpoint := p.BaseURL + "/rest/v1/" + collection
	if enc := params.Encode(); enc != "" {
		endpoint += "?" + enc
	}
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepJitter(ctx, p.Backoff, attempt); err != nil {
				return nil, apperr.Transport(err, "%s %s", method, collection)
			}
		}
		body, err := p.once(ctx, method, endpoint, collection, payload, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !errors.Is(err, apperr.ErrTransport) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (p *PostgREST) once(ctx context.Context, method, endpoint, collection string, payload []byte, headers map[string]string) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "build %s request", collection)
	}
	token := p.token
	if token == "" {
		token = p.APIKey
	}
	req.Header.Set("apikey", p.APIKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, apperr.Transport(err, "%s %s", method, collection)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(err, "read %s response", collection)
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, collection, body)
	}
	return body, nil
}

// statusError maps an HTTP failure onto the error taxonomy.
func statusError(code int, collection string, body []byte) error {
	var remote struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &remote) == nil && remote.Message != "" {
		msg = remote.Message
		if remote.Code != "" {
			msg = remote.Code + ": " + msg
		}
	}
	cause := fmt.Errorf("%s: %d %s", collection, code, msg)
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperr.Wrap(apperr.KindAuth, cause, "access denied")
	case code == http.StatusNotFound:
		return apperr.Wrap(apperr.KindNotFound, cause, "not found")
	case code == http.StatusBadRequest || code == http.StatusConflict || code == http.StatusUnprocessableEntity:
		return apperr.Wrap(apperr.KindValidation, cause, "rejected")
	case code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return apperr.Transport(cause, "service unavailable")
	}
	return cause
}

func sleepJitter(ctx context.Context, base time.Duration, attempt int) error {
	d := base << (attempt - 1)
	d = d/2 + time.Duration(rand.Int63n(int64(d/2+1)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// encodeFilters renders AND-ed clauses as PostgREST query parameters.
// Single-condition clauses become column filters; disjunctions become or=().
func encodeFilters(where []query.Clause) (url.Values, error) {
	params := url.Values{}
	var ors []string
	for _, clause := range where {
		switch len(clause) {
		case 0:
			continue
		case 1:
			c := clause[0]
			v, err := operand(c, false)
			if err != nil {
				return nil, err
			}
			params.Add(c.Field, v)
		default:
			parts := make([]string, 0, len(clause))
			for _, c := range clause {
				v, err := operand(c, true)
				if err != nil {
					return nil, err
				}
				parts = append(parts, c.Field+"."+v)
			}
			ors = append(ors, "("+strings.Join(parts, ",")+")")
		}
	}
	switch len(ors) {
	case 0:
	case 1:
		params.Set("or", ors[0])
	default:
		wrapped := make([]string, len(ors))
		for i, o := range ors {
			wrapped[i] = "or" + o
		}
		params.Set("and", "("+strings.Join(wrapped, ",")+")")
	}
	return params, nil
}

// operand renders "op.value". Inside a logic tree, values holding reserved
// characters are double quoted.
func operand(c query.Condition, nested bool) (string, error) {
	switch c.Op {
	case query.OpEq:
		v := scalar(c.Value)
		if nested {
			v = quoteValue(v)
		}
		return "eq." + v, nil
	case query.OpIn:
		vals := make([]string, len(c.Values))
		for i, v := range c.Values {
			vals[i] = quoteValue(scalar(v))
		}
		return "in.(" + strings.Join(vals, ",") + ")", nil
	case query.OpContains:
		term := scalar(c.Value)
		// like patterns turn every * into %, so such terms go through a
		// quoted regular expression instead.
		if strings.Contains(term, "*") {
			v := regexp.QuoteMeta(term)
			if nested {
				v = quoteValue(v)
			}
			return "imatch." + v, nil
		}
		v := "*" + query.EscapeLike(term) + "*"
		if nested {
			v = quoteValue(v)
		}
		return "ilike." + v, nil
	case query.OpEqJSON:
		doc := scalar(c.Value)
		if doc == "null" {
			return "is.null", nil
		}
		if nested {
			doc = quoteValue(doc)
		}
		return "eq." + doc, nil
	}
	return "", apperr.Validation("unsupported operator %q on %s", c.Op, c.Field)
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, `,.:()" \`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
