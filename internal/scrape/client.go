// Package scrape fetches rendered pages through a Firecrawl-compatible
// scraping provider.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEndpoint = "https://api.firecrawl.dev/v0/scrape"
	DefaultWaitFor  = 2 * time.Second
	DefaultTimeout  = 60 * time.Second

	ctxKeyBody   = "body"
	ctxKeyStatus = "status"
	ctxKeyErr    = "err"
)

// Tags the provider keeps and drops when rendering a page
var (
	includeTags = []string{"title", "meta", "h1", "h2", "h3", "p", "a", "div", "span"}
	excludeTags = []string{"script", "style", "nav", "header", "footer"}
)

// Page is the rendered content of one fetched URL
type Page struct {
	// Text is the markdown rendering, or the HTML when markdown is missing
	Text string
	// Title is empty when neither metadata nor HTML carried one
	Title string
}

// Options configures a Client
type Options struct {
	Endpoint string
	WaitFor  time.Duration
	Timeout  time.Duration
}

// Client issues render-and-extract requests to the scraping provider.
// It is safe for concurrent use; it never retries.
type Client struct {
	endpoint  string
	waitFor   time.Duration
	collector *colly.Collector
}

type scrapeRequest struct {
	URL         string   `json:"url"`
	Formats     []string `json:"formats"`
	IncludeTags []string `json:"includeTags"`
	ExcludeTags []string `json:"excludeTags"`
	WaitFor     int64    `json:"waitFor"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    *struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

// NewClient creates a provider client
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.WaitFor == 0 {
		opts.WaitFor = DefaultWaitFor
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: opts.Endpoint,
		waitFor:  opts.WaitFor,
	}
	c.setupColly(opts.Timeout)
	return c
}

// setupColly configures a synchronous collector whose callbacks stash the
// outcome in the per-request colly.Context
func (c *Client) setupColly(timeout time.Duration) {
	c.collector = colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	c.collector.SetRequestTimeout(timeout)

	c.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyBody, r.Body)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		r.Ctx.Put(ctxKeyBody, r.Body)
		r.Ctx.Put(ctxKeyErr, err)
	})
}

// FetchPage renders targetURL through the provider using credential as the
// bearer token. Failures are *ProviderError or *NetworkError.
func (c *Client) FetchPage(ctx context.Context, targetURL, credential string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{Message: err.Error()}
	}

	payload, err := json.Marshal(scrapeRequest{
		URL:         targetURL,
		Formats:     []string{"markdown", "html"},
		IncludeTags: includeTags,
		ExcludeTags: excludeTags,
		WaitFor:     c.waitFor.Milliseconds(),
	})
	if err != nil {
		return nil, &NetworkError{Message: "encode request: " + err.Error()}
	}

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+credential)
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "application/json")

	reqCtx := colly.NewContext()
	visitErr := c.collector.Request(http.MethodPost, c.endpoint, bytes.NewReader(payload), reqCtx, hdr)

	status, _ := reqCtx.GetAny(ctxKeyStatus).(int)
	body, _ := reqCtx.GetAny(ctxKeyBody).([]byte)

	if visitErr != nil || status < 200 || status > 299 {
		return nil, classifyFailure(status, body, visitErr)
	}

	var resp scrapeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{StatusCode: status, Message: "invalid response body: " + err.Error()}
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Scraping failed"
		}
		return nil, &ProviderError{StatusCode: status, Message: msg}
	}

	page := &Page{}
	if resp.Data != nil {
		page.Text = resp.Data.Markdown
		if page.Text == "" {
			page.Text = resp.Data.HTML
		}
		page.Title = strings.TrimSpace(resp.Data.Metadata.Title)
		if page.Title == "" {
			page.Title = htmlTitle(resp.Data.HTML)
		}
	}

	logrus.Debugf("Fetched %s via provider (%d bytes of text)", targetURL, len(page.Text))
	return page, nil
}

// classifyFailure maps a failed collector request to the client's error kinds.
// A zero status means no HTTP response was received at all.
func classifyFailure(status int, body []byte, err error) error {
	if status == 0 {
		msg := "no response from provider"
		if err != nil {
			msg = err.Error()
		}
		return &NetworkError{Message: msg}
	}

	var errBody struct {
		Error string `json:"error"`
	}
	msg := "Unknown error"
	if jsonErr := json.Unmarshal(body, &errBody); jsonErr == nil && errBody.Error != "" {
		msg = errBody.Error
	}
	return &ProviderError{StatusCode: status, Message: msg}
}

// htmlTitle returns the document <title> text, or "" when absent
func htmlTitle(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
