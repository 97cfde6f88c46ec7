package scoring

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/foodnews/internal/news"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestScorer(sources map[string]news.Source) *Scorer {
	return New(DefaultTable(), sources, WithClock(func() time.Time { return fixedNow }))
}

func TestScore_TitleAndRepeatedKeywordScoresHigher(t *testing.T) {
	s := newTestScorer(nil)

	strong := &news.Article{
		Title:   "Importation en hausse",
		Summary: "Les chiffres de importation montrent une importation record.",
	}
	weak := &news.Article{
		Title:   "Chiffres en hausse",
		Summary: "Les chiffres de importation sont publiés.",
	}

	a := s.Score(strong, false)
	b := s.Score(weak, false)
	if a <= b {
		t.Fatalf("expected title + repeated keyword to score higher: %f <= %f", a, b)
	}
	if b <= 0 {
		t.Errorf("expected single mention to score positive, got %f", b)
	}
}

func TestScore_EmptyAndUnmatched(t *testing.T) {
	s := newTestScorer(nil)

	empty := &news.Article{}
	if got := s.Score(empty, true); got != 0 {
		t.Errorf("empty text score = %f, want 0", got)
	}

	other := &news.Article{Title: "Résultats du hockey", Summary: "Victoire en prolongation hier soir."}
	if got := s.Score(other, true); got != 0 {
		t.Errorf("unmatched score = %f, want 0", got)
	}
	if other.Tags != nil || other.RelevanceExplanation != "" {
		t.Errorf("zero score must not record tags or explanation")
	}
}

func TestScore_NegativeContextPenalty(t *testing.T) {
	s := newTestScorer(nil)

	neg := &news.Article{Title: "Annonce", Summary: "Sysco annonce la fermeture de son entrepôt."}
	pos := &news.Article{Title: "Annonce", Summary: "Sysco annonce l'ouverture de son entrepôt."}

	n := s.Score(neg, false)
	p := s.Score(pos, false)
	if !(n < p) {
		t.Fatalf("expected negative context to lower score: %f >= %f", n, p)
	}
	if math.Abs(n-p*0.9) > 1e-9 {
		t.Errorf("expected a single 10%% penalty, got %f vs %f", n, p)
	}
}

func TestScore_NegativePenaltyCapped(t *testing.T) {
	s := newTestScorer(nil)

	sentence := "Sysco ferme ses portes. "
	neg := &news.Article{Title: "x", Summary: strings.Repeat(sentence, 8)}
	base := &news.Article{Title: "x", Summary: strings.Repeat("Sysco reste ouvert. ", 8)}

	n := s.Score(neg, false)
	b := s.Score(base, false)
	if math.Abs(n-b*0.5) > 1e-9 {
		t.Errorf("expected penalty capped at 50%%: %f vs %f", n, b)
	}
}

func TestScore_FreshnessMultiplier(t *testing.T) {
	s := newTestScorer(nil)

	today := fixedNow.Add(-2 * time.Hour)
	old := fixedNow.Add(-10 * 24 * time.Hour)

	fresh := &news.Article{Title: "Sysco", Summary: "Sysco investit.", PublishedAt: &today}
	stale := &news.Article{Title: "Sysco", Summary: "Sysco investit.", PublishedAt: &old}
	undated := &news.Article{Title: "Sysco", Summary: "Sysco investit."}

	f := s.Score(fresh, false)
	st := s.Score(stale, false)
	u := s.Score(undated, false)

	if math.Abs(f-u*1.5) > 1e-9 {
		t.Errorf("today multiplier: got %f want %f", f, u*1.5)
	}
	if math.Abs(st-u*0.8) > 1e-9 {
		t.Errorf("stale multiplier: got %f want %f", st, u*0.8)
	}
}

func TestScore_SourceMultiplier(t *testing.T) {
	sources := map[string]news.Source{
		"trade": {Name: "trade", PriorityMultiplier: 2},
		"plain": {Name: "plain"},
	}
	s := newTestScorer(sources)

	a := &news.Article{Source: "trade", Title: "Sysco", Summary: "Sysco investit."}
	b := &news.Article{Source: "plain", Title: "Sysco", Summary: "Sysco investit."}

	if got, want := s.Score(a, false), 2*s.Score(b, false); math.Abs(got-want) > 1e-9 {
		t.Errorf("multiplier: got %f want %f", got, want)
	}
}

func TestScore_GeographicBonusFavorsHomeRegion(t *testing.T) {
	s := newTestScorer(nil)

	local := &news.Article{Title: "Restaurant", Summary: "Un restaurant ouvre à Beauport."}
	far := &news.Article{Title: "Restaurant", Summary: "Un restaurant ouvre à Granby."}

	if l, f := s.Score(local, false), s.Score(far, false); l <= f {
		t.Errorf("expected immediate region to outscore province: %f <= %f", l, f)
	}
}

func TestScore_FullTextRecordsTagsAndExplanation(t *testing.T) {
	s := newTestScorer(nil)

	a := &news.Article{
		Title:    "Sysco acquiert un concurrent",
		Summary:  "Transaction majeure.",
		FullText: "Le distributeur Sysco poursuit sa croissance avec des droits de douane réduits.",
	}
	if s.Score(a, true) <= 0 {
		t.Fatalf("expected positive score")
	}
	if !a.ScoredWithFullText {
		t.Errorf("expected full text flag")
	}
	if len(a.Tags) == 0 {
		t.Fatalf("expected tags")
	}
	if !strings.Contains(a.RelevanceExplanation, "l'importation") {
		t.Errorf("expected import reason to take precedence, got %q", a.RelevanceExplanation)
	}

	b := &news.Article{Title: "Sysco acquiert un concurrent", Summary: "Transaction majeure."}
	s.Score(b, false)
	if b.Tags != nil || b.ScoredWithFullText {
		t.Errorf("summary-only scoring must not record tags")
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := newTestScorer(nil)
	a := &news.Article{
		Title:    "Pénurie de volaille à Lévis",
		Summary:  "Les restaurants de la Capitale-Nationale cherchent un grossiste. Prix en hausse!",
		FullText: "La chaîne d'approvisionnement du Québec est sous pression; les distributeurs alimentaires s'adaptent.",
	}
	first := s.Score(a, true)
	for i := 0; i < 20; i++ {
		if got := s.Score(a, true); got != first {
			t.Fatalf("score changed between runs: %v vs %v", got, first)
		}
	}
}

func TestDescribe_FallsBackToSourceCategory(t *testing.T) {
	sources := map[string]news.Source{"trade": {Name: "trade", Category: "A"}}
	s := newTestScorer(sources)

	a := &news.Article{Source: "trade", Title: "Bilan annuel", Summary: "Un bilan.", RelevanceScore: 0.42}
	s.Describe(a)
	if a.RelevanceScore != 0.42 {
		t.Errorf("Describe must not rescore")
	}
	if !strings.Contains(a.RelevanceExplanation, "source de référence") {
		t.Errorf("unexpected explanation %q", a.RelevanceExplanation)
	}
}

func TestCountTerm_ShortTermsNeedWordBoundaries(t *testing.T) {
	cases := []struct {
		text, term string
		want       int
	}{
		{"la banque annonce un ban des importations", "ban", 1},
		{"upa, upa et supaero", "upa", 2},
		{"importation et import", "import", 1},
		{"", "menu", 0},
	}
	for _, c := range cases {
		if got := CountTerm(c.text, c.term); got != c.want {
			t.Errorf("CountTerm(%q, %q) = %d, want %d", c.text, c.term, got, c.want)
		}
	}
}

func TestContainsTerm_ImportNeedsWholeWord(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"un rôle important pour la région", false},
		{"l'importance du marché local", false},
		{"new import rules for dairy", true},
		{"canadian imports of produce", false},
	}
	for _, c := range cases {
		if got := ContainsTerm(c.text, "import"); got != c.want {
			t.Errorf("ContainsTerm(%q, import) = %v, want %v", c.text, got, c.want)
		}
	}

	s := newTestScorer(nil)
	a := &news.Article{Title: "Un geste important", Summary: "Une décision importante pour la ville."}
	if got := s.Score(a, false); got != 0 {
		t.Errorf("important prose scored %f, want 0", got)
	}
	if !ContainsAny("canadian imports of produce", s.Table().Critical) {
		t.Error("expected imports to be a critical term")
	}
}

func TestLoadTable(t *testing.T) {
	def, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if len(def.Keywords) == 0 {
		t.Fatalf("expected default keywords")
	}

	path := filepath.Join(t.TempDir(), "keywords.yaml")
	body := "keywords:\n  Fromage: 9\n  lait: 4\ncritical:\n  - fromage\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if len(tbl.Keywords) != 2 || tbl.Keywords[0].Term != "fromage" || tbl.Keywords[1].Term != "lait" {
		t.Errorf("unexpected keywords %+v", tbl.Keywords)
	}
	if len(tbl.Critical) != 1 || len(tbl.Local) == 0 {
		t.Errorf("expected override of critical only, got %+v", tbl.Critical)
	}
}
