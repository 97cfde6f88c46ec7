package scoring

import (
	"github.com/deusflow/foodnews/internal/news"
)

const explanationPrefix = "Cette nouvelle est pertinente pour FLB car elle concerne "

const defaultReason = "des développements importants pour l'industrie alimentaire québécoise"

// CategoryOf returns the highest priority category any matched term belongs to.
func (s *Scorer) CategoryOf(matched []string) (Category, bool) {
	set := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		set[m] = struct{}{}
	}
	for _, c := range s.table.Categories {
		for _, term := range c.Terms {
			if _, ok := set[term]; ok {
				return c, true
			}
		}
	}
	return Category{}, false
}

func (s *Scorer) explain(a *news.Article, matched []string) string {
	if c, ok := s.CategoryOf(matched); ok {
		return explanationPrefix + c.Reason + "."
	}

	reason := defaultReason
	if src, ok := s.sources[a.Source]; ok {
		if r, ok := s.table.SourceReasons[src.Category]; ok && r != "" {
			reason = r
		}
	}
	return explanationPrefix + reason + "."
}
