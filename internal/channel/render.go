package channel

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openletter/newsletter-backend/internal/model"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// RenderEmail builds the HTML and plaintext bodies for one subscriber,
// including the per-subscriber unsubscribe and preferences links.
func RenderEmail(n *model.Newsletter, sub *model.Subscriber, categoryNames []string, baseURL string) (html, text string) {
	content := substitutePlaceholders(n.Content, sub)
	unsubscribe := fmt.Sprintf("%s/unsubscribe/%s", baseURL, sub.UnsubscribeToken)
	preferences := fmt.Sprintf("%s/preferences/%s", baseURL, sub.PreferencesToken)

	var topics string
	if len(categoryNames) > 0 {
		topics = strings.Join(categoryNames, ", ")
	}

	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString("<h1>" + n.Title + "</h1>")
	b.WriteString(content)
	if topics != "" {
		b.WriteString("<p>You are receiving this because you follow: " + topics + "</p>")
	}
	b.WriteString(`<p><a href="` + preferences + `">Update preferences</a> | <a href="` + unsubscribe + `">Unsubscribe</a></p>`)
	b.WriteString("</body></html>")
	html = b.String()

	var t strings.Builder
	t.WriteString(n.Title + "\n\n")
	t.WriteString(StripTags(content) + "\n\n")
	if topics != "" {
		t.WriteString("You are receiving this because you follow: " + topics + "\n")
	}
	t.WriteString("Update preferences: " + preferences + "\n")
	t.WriteString("Unsubscribe: " + unsubscribe + "\n")
	text = t.String()

	return html, text
}

// RenderSMS builds the short-form body. SMS carries no links beyond the
// unsubscribe keyword convention, so the body is title plus stripped content.
func RenderSMS(n *model.Newsletter, sub *model.Subscriber) string {
	body := n.Title + ": " + StripTags(substitutePlaceholders(n.Content, sub))
	const maxLen = 450 // three concatenated segments
	if len(body) > maxLen {
		cut := maxLen - 3
		// Back up off a multi-byte rune rather than splitting it.
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	return body
}

// substitutePlaceholders fills {first_name}-style tokens in the content.
func substitutePlaceholders(content string, sub *model.Subscriber) string {
	firstName := sub.FirstName
	if firstName == "" {
		firstName = "there"
	}
	out := strings.ReplaceAll(content, "{first_name}", firstName)
	out = strings.ReplaceAll(out, "{frequency}", sub.Frequency)
	return out
}

// StripTags reduces HTML content to plaintext.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}
