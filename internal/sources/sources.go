// Package sources expands job titles into job-board search URLs.
package sources

import (
	"net/url"
	"strings"
)

// TemplateVersion identifies the board template list below. Bump it whenever
// a template is added, removed or reordered.
const TemplateVersion = "v1"

// Board is one job board search endpoint. The title placeholder is %s.
type Board struct {
	Name     string
	Template string
}

var boards = []Board{
	{Name: "linkedin", Template: "https://www.linkedin.com/jobs/search/?keywords=%s"},
	{Name: "indeed", Template: "https://www.indeed.com/jobs?q=%s"},
	{Name: "glassdoor", Template: "https://www.glassdoor.com/Job/jobs.htm?sc.keyword=%s"},
	{Name: "stackoverflow", Template: "https://stackoverflow.com/jobs?q=%s"},
	{Name: "google", Template: "https://jobs.google.com/search?q=%s"},
	{Name: "ziprecruiter", Template: "https://www.ziprecruiter.com/Jobs/%s"},
	{Name: "monster", Template: "https://www.monster.com/jobs/search/?q=%s"},
	{Name: "careerbuilder", Template: "https://www.careerbuilder.com/jobs?keywords=%s"},
}

// Boards returns a copy of the supported boards in generation order.
func Boards() []Board {
	out := make([]Board, len(boards))
	copy(out, boards)
	return out
}

// PerTitle is the number of URLs GenerateURLs yields for any title.
func PerTitle() int {
	return len(boards)
}

// GenerateURLs percent-encodes jobTitle and substitutes it into every board
// template, in board order.
func GenerateURLs(jobTitle string) []string {
	encoded := encodeComponent(jobTitle)

	urls := make([]string, 0, len(boards))
	for _, b := range boards {
		urls = append(urls, strings.Replace(b.Template, "%s", encoded, 1))
	}
	return urls
}

// ExpandTitles flattens the URLs of every title, preserving title order and
// then board order within a title.
func ExpandTitles(jobTitles []string) []string {
	urls := make([]string, 0, len(jobTitles)*len(boards))
	for _, title := range jobTitles {
		urls = append(urls, GenerateURLs(title)...)
	}
	return urls
}

// componentUnescaper restores the characters that URI component encoding
// leaves alone but url.QueryEscape does not. A literal '+' is already %2B,
// so the only '+' left stands for a space.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent escapes s for use inside a query value or path segment,
// keeping A-Z a-z 0-9 and - _ . ! ~ * ' ( ) as they are.
func encodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
