package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alvmarrod/job-harvester/internal/storage"
)

// MaxJobPostings caps the postings kept per page
const MaxJobPostings = 10

const (
	UnknownCompany       = "Unknown Company"
	NoDescription        = "No description available"
	DefaultPostingType   = "full-time"
	postingLookahead     = 9
	descriptionMinLength = 50
)

var headingPattern = regexp.MustCompile(`^#+\s`)

// JobPostings picks job-title candidates (markdown headings, or short lines
// naming a role) and fills company, location and description from the next
// few lines. A metadata line for one candidate may still be a candidate itself.
func JobPostings(text string) []storage.JobPosting {
	lines := strings.Split(text, "\n")
	postings := []storage.JobPosting{}

	for i, line := range lines {
		if len(postings) >= MaxJobPostings {
			break
		}

		if !isTitleCandidate(line) {
			continue
		}

		title := strings.TrimSpace(headingPattern.ReplaceAllString(line, ""))
		if n := utf8.RuneCountInString(title); n <= 5 || n >= 100 {
			continue
		}

		posting := storage.JobPosting{
			Title:   title,
			Company: UnknownCompany,
			Type:    DefaultPostingType,
		}

		var company, location, description string
		end := min(len(lines), i+1+postingLookahead)
		for _, nearby := range lines[i+1 : end] {
			lower := strings.ToLower(nearby)
			trimmed := strings.TrimSpace(nearby)

			if company == "" && containsAny(lower, "company", "corp", "inc") {
				company = trimmed
			}
			if location == "" && containsAny(lower, "location", "remote", "city") {
				location = trimmed
			}
			// measured before trimming; indentation counts
			if description == "" && utf8.RuneCountInString(nearby) > descriptionMinLength {
				description = trimmed
			}
		}

		if company != "" {
			posting.Company = company
		}
		posting.Location = location
		posting.Description = description
		if posting.Description == "" {
			posting.Description = NoDescription
		}

		postings = append(postings, posting)
	}

	return postings
}

func isTitleCandidate(line string) bool {
	if headingPattern.MatchString(line) {
		return true
	}

	n := utf8.RuneCountInString(line)
	if n <= 10 || n >= 100 {
		return false
	}

	return containsAny(strings.ToLower(line),
		"engineer", "developer", "manager", "analyst", "specialist", "coordinator")
}
