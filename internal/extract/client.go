package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/driftwatch-project/driftwatch/pkg/structdiff"
)

// ErrLoginFailed is returned when the post-login page does not look like a
// logged-in session (wrong credentials, changed form, expired account).
var ErrLoginFailed = errors.New("login failed")

// Client fetches pages and builds snapshot values. The underlying resty
// client keeps a cookie jar, so a login performed for a target carries
// over to the page fetch that follows it.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "driftwatch/1.0")
	return &Client{http: httpClient, log: log}
}

// Snapshot logs in when the target requires it, fetches the page and
// applies the target's extraction rules in declaration order.
func (c *Client) Snapshot(ctx context.Context, t Target) (structdiff.Value, error) {
	if t.Login != nil {
		if err := c.login(ctx, t.Name, *t.Login); err != nil {
			return nil, err
		}
	}

	doc, err := c.fetchDocument(ctx, t.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.URL, err)
	}

	root := structdiff.NewMapping()
	for _, f := range t.Fields {
		root.Set(f.Key, extractField(doc, f))
	}
	for _, tb := range t.Tables {
		rows, err := extractTable(doc, tb)
		if err != nil {
			return nil, err
		}
		root.Set(tb.Key, rows)
	}

	c.log.Debug().
		Str("target", t.Name).
		Int("fields", len(t.Fields)).
		Int("tables", len(t.Tables)).
		Msg("snapshot extracted")
	return root, nil
}

// login fetches the form page, carries its hidden inputs over and posts
// the credentials to the form action.
func (c *Client) login(ctx context.Context, target string, l Login) error {
	doc, err := c.fetchDocument(ctx, l.URL)
	if err != nil {
		return fmt.Errorf("fetch login form: %w", err)
	}

	formSel := l.Form
	if formSel == "" {
		formSel = "form"
	}
	form := doc.Find(formSel).First()
	if form.Length() == 0 {
		return fmt.Errorf("%w: no form matches %q on %s", ErrLoginFailed, formSel, l.URL)
	}

	fields := map[string]string{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok {
			return
		}
		fields[name], _ = sel.Attr("value")
	})
	fields[l.UsernameField] = l.Username
	fields[l.PasswordField] = l.Password

	action, err := resolveAction(l.URL, form.AttrOr("action", ""))
	if err != nil {
		return err
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(fields).
		Post(action)
	if err != nil {
		return fmt.Errorf("post login form: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("%w: login endpoint answered %s", ErrLoginFailed, res.Status())
	}

	if l.Success != "" {
		landing, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
		if err != nil {
			return fmt.Errorf("parse post-login page: %w", err)
		}
		if landing.Find(l.Success).Length() == 0 {
			return fmt.Errorf("%w: %q not found on post-login page", ErrLoginFailed, l.Success)
		}
	}

	c.log.Debug().Str("target", target).Msg("logged in")
	return nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %s", res.Status())
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
}

// resolveAction resolves a form action (possibly relative, possibly empty)
// against the page the form was served on.
func resolveAction(pageURL, action string) (string, error) {
	if action == "" {
		return pageURL, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse login url: %w", err)
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("parse form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func extractField(doc *goquery.Document, f Field) structdiff.Value {
	sel := doc.Find(f.Selector).First()
	if sel.Length() == 0 {
		return structdiff.Null{}
	}
	if f.Attr != "" {
		attr, ok := sel.Attr(f.Attr)
		if !ok {
			return structdiff.Null{}
		}
		return scalar(attr)
	}
	return scalar(sel.Text())
}

// scalar normalizes whitespace and converts number- and bool-looking text
// so comparisons work on values rather than formatting.
func scalar(raw string) structdiff.Value {
	text := strings.Join(strings.Fields(raw), " ")
	switch text {
	case "true":
		return structdiff.Bool(true)
	case "false":
		return structdiff.Bool(false)
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return structdiff.Number(f)
	}
	return structdiff.String(text)
}
