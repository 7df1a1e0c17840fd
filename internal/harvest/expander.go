// Package harvest turns one generated source URL into a SourceRecord,
// following external links one hop out when the page itself has no emails.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/job-harvester/internal/extract"
	"github.com/alvmarrod/job-harvester/internal/metrics"
	"github.com/alvmarrod/job-harvester/internal/scrape"
	"github.com/alvmarrod/job-harvester/internal/storage"
)

// MaxFollowedURLs bounds how many external URLs are fetched per source
const MaxFollowedURLs = 3

// DefaultPageTitle is used when the provider reports no title
const DefaultPageTitle = "Unknown Page"

// ErrPrimaryFetch wraps the scrape error of a failed source URL fetch
var ErrPrimaryFetch = errors.New("primary fetch failed")

// Fetcher is the part of scrape.Client the expander depends on
type Fetcher interface {
	FetchPage(ctx context.Context, targetURL, credential string) (*scrape.Page, error)
}

// Expander runs fetch, extract and one-hop expansion for a single URL
type Expander struct {
	fetcher Fetcher
	tracker *metrics.Tracker
	now     func() time.Time
}

// NewExpander creates an expander that reports fetches to tracker
func NewExpander(fetcher Fetcher, tracker *metrics.Tracker) *Expander {
	return &Expander{
		fetcher: fetcher,
		tracker: tracker,
		now:     time.Now,
	}
}

// Expand harvests sourceURL for batchID. It fails only when the primary
// fetch fails; external page failures are skipped.
func (e *Expander) Expand(ctx context.Context, batchID, sourceURL, credential string) (*storage.SourceRecord, error) {
	start := e.now()
	chain := []string{sourceURL}

	page, err := e.fetch(ctx, metrics.RolePrimary, sourceURL, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPrimaryFetch, sourceURL, err)
	}

	emails := extract.Emails(page.Text)
	externalURLs := extract.ExternalURLs(page.Text, sourceURL)

	if len(emails) == 0 && len(externalURLs) > 0 {
		for _, u := range externalURLs[:min(MaxFollowedURLs, len(externalURLs))] {
			external, err := e.fetch(ctx, metrics.RoleExternal, u, credential)
			if err != nil {
				logrus.Debugf("Skipping external page %s: %v", u, err)
				continue
			}
			emails = append(emails, extract.Emails(external.Text)...)
			chain = append(chain, u)
		}
	}

	domain, err := extract.Domain(sourceURL)
	if err != nil {
		logrus.Debugf("Could not parse domain of %s: %v", sourceURL, err)
	}

	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = DefaultPageTitle
	}

	finished := e.now()
	return &storage.SourceRecord{
		ID:               uuid.NewString(),
		BatchID:          batchID,
		SourceURL:        sourceURL,
		Domain:           domain,
		PageTitle:        title,
		Emails:           dedupe(emails),
		Contacts:         extract.Contacts(page.Text),
		JobPostings:      extract.JobPostings(page.Text),
		ExternalURLs:     externalURLs,
		RedirectChain:    chain,
		ProcessingTimeMs: finished.Sub(start).Milliseconds(),
		ScrapedAt:        finished.UTC(),
	}, nil
}

func (e *Expander) fetch(ctx context.Context, role, u, credential string) (*scrape.Page, error) {
	start := time.Now()
	page, err := e.fetcher.FetchPage(ctx, u, credential)
	e.tracker.RecordFetch(role, time.Since(start), err)
	return page, err
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
