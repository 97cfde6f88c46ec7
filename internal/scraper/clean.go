package scraper

import (
	"strings"
)

// junkIndicators mark boilerplate lines from Québec and Canadian news sites.
var junkIndicators = []string{
	"cookie", "témoins de navigation", "politique de confidentialité", "privacy policy",
	"abonnez-vous", "abonnement", "subscribe", "infolettre", "newsletter",
	"partager cet article", "share this", "lire aussi", "à lire aussi", "read more",
	"publicité", "advertisement", "suivez-nous", "follow us", "se connecter", "sign in",
	"tous droits réservés", "all rights reserved",
}

// cleanContent drops boilerplate lines, merges lines into paragraphs and caps
// the result at maxRunes, keeping whole paragraphs when possible.
func cleanContent(content string, maxRunes int) string {
	content = strings.ReplaceAll(content, "\r", "")
	if strings.TrimSpace(content) == "" {
		return ""
	}

	var paragraphs []string
	var current strings.Builder
	flush := func() {
		p := strings.TrimSpace(current.String())
		if len([]rune(p)) > 30 {
			paragraphs = append(paragraphs, p)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if len([]rune(line)) < 8 {
			flush()
			continue
		}
		if isJunk(line) {
			continue
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
		if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?") {
			flush()
		}
	}
	flush()

	result := strings.Join(paragraphs, "\n\n")
	if maxRunes <= 0 || len([]rune(result)) <= maxRunes {
		return result
	}

	var kept []string
	total := 0
	for _, p := range paragraphs {
		n := len([]rune(p))
		if total+n > maxRunes {
			break
		}
		kept = append(kept, p)
		total += n + 2
	}
	if len(kept) == 0 {
		return string([]rune(result)[:maxRunes])
	}
	return strings.Join(kept, "\n\n")
}

func isJunk(line string) bool {
	lower := strings.ToLower(line)
	// long lines are article prose even when they mention a junk word
	if len([]rune(lower)) > 160 {
		return false
	}
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
