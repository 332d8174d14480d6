package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/schema"
)

// Pager walks a cursor-driven listing endpoint lazily, one page per Next
// call. The cursor value may be an opaque token (sent back as a query
// parameter) or a fully-qualified next-page URL.
type Pager struct {
	client Client
	kind   string
	list   *schema.ListConfig

	cursor    string
	cursorURL string
	started   bool
	done      bool
}

func NewPager(client Client, kind string, list *schema.ListConfig) *Pager {
	return &Pager{client: client, kind: kind, list: list}
}

func (c *HTTPClient) Paginate(kind string, list *schema.ListConfig) *Pager {
	return NewPager(c, kind, list)
}

// Next returns the next raw page. The second result is false once the
// listing is exhausted.
func (p *Pager) Next(ctx context.Context) (any, bool, error) {
	if p == nil || p.done {
		return nil, false, nil
	}
	if p.list == nil || strings.TrimSpace(p.list.URL) == "" {
		p.done = true
		return nil, false, errors.New("listing endpoint is not configured")
	}

	path := p.list.URL
	var query url.Values
	switch {
	case !p.started:
	case p.cursorURL != "":
		path = p.cursorURL
	case p.cursor != "":
		query = url.Values{p.cursorParam(): []string{p.cursor}}
	default:
		p.done = true
		return nil, false, nil
	}
	p.started = true

	resp, err := p.client.Request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		p.done = true
		return nil, false, err
	}

	p.advanceCursor(resp.Data)
	return resp.Data, true, nil
}

func (p *Pager) advanceCursor(page any) {
	p.cursor = ""
	p.cursorURL = ""
	if p.list.CursorField == "" {
		p.done = true
		return
	}
	obj, ok := page.(map[string]any)
	if !ok {
		p.done = true
		return
	}
	next, ok := element.LookupString(obj, p.list.CursorField)
	if !ok || strings.TrimSpace(next) == "" {
		p.done = true
		return
	}
	if strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://") {
		p.cursorURL = next
		return
	}
	p.cursor = next
}

func (p *Pager) cursorParam() string {
	if p.list.CursorParam != "" {
		return p.list.CursorParam
	}
	segments := element.SplitAttrPath(p.list.CursorField)
	if len(segments) == 0 {
		return "cursor"
	}
	return segments[len(segments)-1]
}
