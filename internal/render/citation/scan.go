package citation

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(
	`K\.S\.A\.\s*\d+-\d+[a-z]?` +
		`|RSMo\s*(?:§\s*)?\d+\.\d+` +
		`|\d+\s+U\.S\.C\.\s*§+\s*\d+[a-z]?` +
		`|Mo\.\s*Sup\.\s*Ct\.\s*R\.\s*\d+\.\d+` +
		`|\d+\s+(?:S\.W\.[23]d|P\.[23]d|F\.(?:[234]d|\s*Supp\.(?:\s*[23]d)?)|U\.S\.|Kan\.(?:\s*App\.)?(?:\s*2d)?)\s+\d+`,
)

// Find returns the citation tokens in text, in order, duplicates included.
func Find(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Count returns the number of distinct citation tokens in text. Tokens that
// differ only in whitespace count once.
func Count(text string) int {
	seen := map[string]struct{}{}
	for _, m := range Find(text) {
		seen[strings.Join(strings.Fields(m), " ")] = struct{}{}
	}
	return len(seen)
}

// KindOf tags a token found by Find.
func KindOf(token string) Kind {
	switch {
	case strings.HasPrefix(token, "K.S.A."):
		return KindKansasStatute
	case strings.HasPrefix(token, "RSMo"), strings.HasPrefix(token, "Mo."):
		return KindMissouriStatute
	case strings.Contains(token, "U.S.C."):
		return KindFederalStatute
	default:
		return KindCaseLaw
	}
}

// skipped elements keep their text as is: code stays literal and links are
// never nested.
var skipped = map[string]bool{"pre": true, "code": true, "a": true}

// Annotate wraps every citation token in the text runs of rendered markup
// with its Badge. Text inside pre, code and a elements is left alone. The
// markup is expected to come from the markdown renderer, so a '<' always
// opens a tag.
func Annotate(markup string) string {
	var out strings.Builder
	depth := 0
	for len(markup) > 0 {
		lt := strings.IndexByte(markup, '<')
		if lt < 0 {
			out.WriteString(badgeRun(markup, depth))
			break
		}
		out.WriteString(badgeRun(markup[:lt], depth))

		gt := strings.IndexByte(markup[lt:], '>')
		if gt < 0 {
			out.WriteString(markup[lt:])
			break
		}
		tag := markup[lt : lt+gt+1]
		out.WriteString(tag)
		markup = markup[lt+gt+1:]

		name, closing := tagName(tag)
		if !skipped[name] || strings.HasSuffix(tag, "/>") {
			continue
		}
		if closing {
			depth = max(depth-1, 0)
		} else {
			depth++
		}
	}
	return out.String()
}

func badgeRun(text string, depth int) string {
	if depth > 0 || text == "" {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		return Badge(tok, KindOf(tok))
	})
}

func tagName(tag string) (name string, closing bool) {
	t := strings.TrimPrefix(tag, "<")
	if strings.HasPrefix(t, "/") {
		closing = true
		t = t[1:]
	}
	end := strings.IndexAny(t, " \t\n/>")
	if end < 0 {
		end = len(t)
	}
	return strings.ToLower(t[:end]), closing
}
