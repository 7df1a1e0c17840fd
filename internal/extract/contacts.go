package extract

import (
	"regexp"
	"strings"

	"github.com/alvmarrod/job-harvester/internal/storage"
)

var (
	namePattern         = regexp.MustCompile(`[A-Z][a-z]+ [A-Z][a-z]+`)
	contactEmailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern        = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// UnknownName is used when a contact line carries an email but no name
const UnknownName = "Unknown"

// Lines around a contact line searched for a job position
const positionWindow = 2

// Contacts scans text line by line for lines mentioning a contact, recruiter,
// hiring or manager and turns each one with a name or an email into a Contact.
// Lines are independent: the same person can yield several entries.
func Contacts(text string) []storage.Contact {
	lines := strings.Split(text, "\n")
	contacts := []storage.Contact{}

	for i, line := range lines {
		if !containsAny(strings.ToLower(line), "contact", "recruiter", "hiring", "manager") {
			continue
		}

		name := namePattern.FindString(line)
		email := contactEmailPattern.FindString(line)
		if name == "" && email == "" {
			continue
		}

		contact := storage.Contact{
			Name:  name,
			Email: email,
			Phone: strings.TrimSpace(phonePattern.FindString(line)),
		}
		if contact.Name == "" {
			contact.Name = UnknownName
		}

		from := max(0, i-positionWindow)
		to := min(len(lines), i+positionWindow+1)
		for _, nearby := range lines[from:to] {
			if containsAny(strings.ToLower(nearby), "manager", "director", "recruiter", "coordinator") {
				contact.Position = strings.TrimSpace(nearby)
				break
			}
		}

		contacts = append(contacts, contact)
	}

	return contacts
}
