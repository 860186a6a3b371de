package validation

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/example/waitlist-service/internal/models"
)

// tagPattern removes HTML-like tags. A single removal pass is idempotent:
// any '<' surviving the pass has no matching '>' left, so a second pass is
// a no-op. Entity-decoding sanitizers do not have this property, which is
// why the stored form text is scrubbed with this rather than a policy that
// re-escapes entities.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

var titleCaser = cases.Title(language.English)

// Sanitize normalizes raw user input prior to validation and storage:
// every text field is trimmed, stripped of HTML-like tags and has internal
// whitespace collapsed; the name is additionally title-cased and the email
// lowercased. Absent optional fields stay absent. Sanitize is idempotent.
func Sanitize(data models.FormData) models.FormData {
	out := data.Clone()
	out.Name = titleCaser.String(cleanText(out.Name))
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	out.Message = cleanOptional(out.Message)
	out.Company = cleanOptional(out.Company)
	out.Phone = cleanOptional(out.Phone)
	return out
}

// cleanText strips HTML-like tags and collapses all runs of whitespace to
// single spaces, trimming the ends.
func cleanText(s string) string {
	stripped := tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(stripped), " ")
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := cleanText(*s)
	return &cleaned
}
