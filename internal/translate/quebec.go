package translate

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// foodTerms is the English to French glossary used when no translation
// service answers.
var foodTerms = map[string]string{
	"supply chain":        "chaîne d'approvisionnement",
	"food distribution":   "distribution alimentaire",
	"wholesale":           "vente en gros",
	"wholesaler":          "grossiste",
	"retailer":            "détaillant",
	"grocery":             "épicerie",
	"food service":        "service alimentaire",
	"sustainability":      "durabilité",
	"sustainable":         "durable",
	"local sourcing":      "approvisionnement local",
	"inventory":           "inventaire",
	"logistics":           "logistique",
	"procurement":         "approvisionnement",
	"supplier":            "fournisseur",
	"vendor":              "vendeur",
	"produce":             "produits frais",
	"dairy":               "produits laitiers",
	"meat":                "viande",
	"poultry":             "volaille",
	"seafood":             "fruits de mer",
	"frozen foods":        "aliments surgelés",
	"fresh foods":         "aliments frais",
	"organic":             "biologique",
	"food safety":         "salubrité alimentaire",
	"traceability":        "traçabilité",
	"cold chain":          "chaîne du froid",
	"delivery":            "livraison",
	"distribution center": "centre de distribution",
	"warehouse":           "entrepôt",
	"food trends":         "tendances alimentaires",
	"consumer":            "consommateur",
	"demand":              "demande",
	"supply":              "offre",
	"price":               "prix",
	"market":              "marché",
	"shortage":            "pénurie",
}

var glossary = newGlossary()

// newGlossary matches whole glossary terms, longer terms first.
func newGlossary() *regexp.Regexp {
	terms := make([]string, 0, len(foodTerms))
	for en := range foodTerms {
		terms = append(terms, regexp.QuoteMeta(en))
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return regexp.MustCompile(`(?i)\b(` + strings.Join(terms, "|") + `)\b`)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// basicTranslate substitutes the food industry glossary in place, keeping the
// case of each match.
func basicTranslate(text string) string {
	return glossary.ReplaceAllStringFunc(text, func(m string) string {
		fr := foodTerms[strings.ToLower(m)]
		switch {
		case m == strings.ToUpper(m):
			return strings.ToUpper(fr)
		case m != strings.ToLower(m):
			return capitalize(fr)
		}
		return fr
	})
}

// quebecReplacer adapts France French to Québec business usage. A single pass
// keeps "petit-déjeuner" from cascading into "souper".
var quebecReplacer = strings.NewReplacer(
	"petit-déjeuner", "déjeuner",
	"Petit-déjeuner", "Déjeuner",
	"déjeuner", "dîner",
	"Déjeuner", "Dîner",
	"dîner", "souper",
	"Dîner", "Souper",
	"e-mail", "courriel",
	"E-mail", "Courriel",
	"email", "courriel",
	"Email", "Courriel",
	"week-end", "fin de semaine",
	"Week-end", "Fin de semaine",
	"shopping", "magasinage",
	"Shopping", "Magasinage",
	"parking", "stationnement",
	"Parking", "Stationnement",
	"actualités", "nouvelles",
	"Actualités", "Nouvelles",
)

func quebecois(text string) string {
	return quebecReplacer.Replace(text)
}

// informal maps tutoiement to vouvoiement. Pairs apply one after the other
// since neighbouring words share their separating space.
var informal = [][2]string{
	{"dois-tu", "devez-vous"},
	{"peux-tu", "pouvez-vous"},
	{"veux-tu", "voulez-vous"},
	{" tu ", " vous "},
	{" tu.", " vous."},
	{" tu,", " vous,"},
	{"Tu ", "Vous "},
	{" ton ", " votre "},
	{" ta ", " votre "},
	{" tes ", " vos "},
	{"Ton ", "Votre "},
	{"Ta ", "Votre "},
	{"Tes ", "Vos "},
	{" dois ", " devez "},
	{" peux ", " pouvez "},
	{" veux ", " voulez "},
	{" sais ", " savez "},
}

func formal(text string) string {
	for _, r := range informal {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

var (
	disclaimerInline = regexp.MustCompile(`(?i)\s*[\(\[]\s*(note|remarque|translator'?s? note|n\.d\.t\.?)\b[^\)\]]*[\)\]]\s*`)
	disclaimerLine   = regexp.MustCompile(`(?i)^\s*(note|remarque|translation|traduction)\s*:`)
)

// SanitizeAIText removes the disclaimers models add around a translation.
func SanitizeAIText(text string) string {
	text = disclaimerInline.ReplaceAllString(text, " ")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if loc := disclaimerLine.FindStringIndex(line); loc != nil {
			rest := strings.TrimSpace(line[loc[1]:])
			lower := strings.ToLower(rest)
			// "Traduction: <text>" keeps the text, a note is dropped whole
			if strings.HasPrefix(strings.ToLower(line), "note") || strings.HasPrefix(strings.ToLower(line), "remarque") ||
				strings.Contains(lower, "machine translation") || strings.Contains(lower, "traduction automatique") {
				continue
			}
			line = rest
			if line == "" {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
}
