package scoring

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keyword is one weighted term of the relevance table.
type Keyword struct {
	Term   string
	Weight float64
}

// Category groups keywords for the relevance explanation. Categories are
// evaluated in table order and the first one with a matched term wins.
type Category struct {
	Name   string   `yaml:"name"`
	Reason string   `yaml:"reason"`
	Terms  []string `yaml:"terms"`
}

// Table holds every curated term list used by the scorer and the stages around it.
type Table struct {
	Keywords   []Keyword
	Critical   []string
	Proximity  []string
	Negative   []string
	Local      []string
	Province   []string
	Impact     []string
	Categories []Category
	// SourceReasons is the explanation fallback keyed by source category.
	SourceReasons map[string]string
}

// tableFile is the YAML layout of configs/keywords.yaml. Every section is
// optional, missing sections keep their defaults.
type tableFile struct {
	Keywords      map[string]float64 `yaml:"keywords"`
	Critical      []string           `yaml:"critical"`
	Proximity     []string           `yaml:"proximity"`
	Negative      []string           `yaml:"negative"`
	Local         []string           `yaml:"local"`
	Province      []string           `yaml:"province"`
	Impact        []string           `yaml:"impact"`
	Categories    []Category         `yaml:"categories"`
	SourceReasons map[string]string  `yaml:"source_reasons"`
}

// LoadTable reads a keyword table override from a YAML file. A missing file
// yields the default table.
func LoadTable(path string) (Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read keyword table: %w", err)
	}

	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return t, fmt.Errorf("parse keyword table %s: %w", path, err)
	}

	if len(f.Keywords) > 0 {
		t.Keywords = t.Keywords[:0]
		for term, w := range f.Keywords {
			t.Keywords = append(t.Keywords, Keyword{Term: term, Weight: w})
		}
	}
	if len(f.Critical) > 0 {
		t.Critical = f.Critical
	}
	if len(f.Proximity) > 0 {
		t.Proximity = f.Proximity
	}
	if len(f.Negative) > 0 {
		t.Negative = f.Negative
	}
	if len(f.Local) > 0 {
		t.Local = f.Local
	}
	if len(f.Province) > 0 {
		t.Province = f.Province
	}
	if len(f.Impact) > 0 {
		t.Impact = f.Impact
	}
	if len(f.Categories) > 0 {
		t.Categories = f.Categories
	}
	for k, v := range f.SourceReasons {
		t.SourceReasons[k] = v
	}
	return t.normalized(), nil
}

// normalized lower-cases every term and sorts keywords so that score sums are
// accumulated in a fixed order.
func (t Table) normalized() Table {
	kws := make([]Keyword, 0, len(t.Keywords))
	seen := make(map[string]bool, len(t.Keywords))
	for _, k := range t.Keywords {
		term := strings.ToLower(strings.TrimSpace(k.Term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		kws = append(kws, Keyword{Term: term, Weight: k.Weight})
	}
	sort.Slice(kws, func(i, j int) bool { return kws[i].Term < kws[j].Term })
	t.Keywords = kws

	t.Critical = lowerAll(t.Critical)
	t.Proximity = lowerAll(t.Proximity)
	t.Negative = lowerAll(t.Negative)
	t.Local = lowerAll(t.Local)
	t.Province = lowerAll(t.Province)
	t.Impact = lowerAll(t.Impact)
	cats := make([]Category, len(t.Categories))
	for i, c := range t.Categories {
		cats[i] = Category{Name: c.Name, Reason: c.Reason, Terms: lowerAll(c.Terms)}
	}
	t.Categories = cats
	return t
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DefaultTable returns the curated table for a Québec City food distributor.
func DefaultTable() Table {
	weights := map[string]float64{
		// importation and international trade
		"importation": 15, "import": 15, "imports": 15, "douane": 12, "tarif douanier": 12,
		"commerce international": 12, "international": 10, "accord commercial": 11, "frontière": 10,

		// distribution and competitors
		"distributeur alimentaire": 12, "grossiste alimentaire": 12, "distribution alimentaire": 12,
		"food distribution": 12, "food wholesale": 12, "sysco": 13, "gordon food": 13,
		"concurrence": 11, "concurrent": 11, "wholesale": 10, "grossiste": 10,

		// restaurant clientele
		"restauration": 12, "restaurant": 12, "foodservice": 12, "service alimentaire": 12,
		"chef": 9, "menu": 8, "restaurateur": 10, "chaîne resto": 10,

		// hospitality clientele
		"hôtellerie": 11, "hôtel": 11, "horeca": 12, "hébergement": 9, "tourisme": 8, "hospitalité": 9,

		// immediate region
		"ville de québec": 14, "quebec city": 14, "capitale-nationale": 13, "beauport": 12,
		"lévis": 12, "sainte-foy": 12, "charlesbourg": 12, "ancienne-lorette": 11, "saint-augustin": 11,

		// province
		"québec": 10, "quebec": 10, "montréal": 9, "montreal": 9, "sherbrooke": 8, "gatineau": 8,
		"trois-rivières": 8, "saguenay": 8, "chicoutimi": 8, "rimouski": 7, "drummondville": 7,
		"granby": 7, "saint-jean": 7,

		// operations
		"chaîne d'approvisionnement": 7, "supply chain": 7, "logistique": 6, "logistics": 6,
		"transport": 5, "entreposage": 5, "warehouse": 5, "livraison": 6, "delivery": 6,

		// products
		"produits frais": 5, "produce": 5, "viande": 5, "meat": 5, "poultry": 4, "volaille": 4,
		"produits laitiers": 5, "dairy": 5, "surgelés": 4, "frozen": 4, "épices": 4, "condiments": 4,

		// trends and sustainability
		"tendances alimentaires": 4, "food trends": 4, "innovation": 4, "durabilité": 4,
		"sustainability": 4, "local": 5, "régional": 5, "biologique": 3, "organic": 3,

		// economic pressure
		"inflation": 3, "prix": 3, "price": 3, "pénurie": 4, "shortage": 4, "demande": 3, "demand": 3,

		// regulation
		"réglementation": 6, "regulation": 6, "mapaq": 7, "acia": 6, "cfia": 6,
		"étiquetage": 5, "salubrité": 5, "rappel": 5, "recall": 5,

		// agricultural supply
		"agriculture": 5, "agricole": 5, "récolte": 5, "harvest": 5, "producteurs": 5, "upa": 5,
	}

	t := Table{
		Critical: []string{
			"aliment", "food", "épicerie", "grocery", "distribut", "grossiste", "wholesale",
			"restaura", "foodservice", "hôtel", "hotel", "horeca", "import", "imports", "importat", "importé", "douane", "tarif",
			"agricol", "agricult", "agroalimentaire", "approvisionnement", "supply chain",
			"sysco", "gordon", "inflation", "pénurie", "shortage",
			"québec", "quebec", "capitale-nationale", "lévis", "beauport", "sainte-foy", "charlesbourg",
		},
		Proximity: []string{
			"distributeur", "distribution", "grossiste", "wholesale", "alimentaire", "agroalimentaire",
			"food", "québec", "quebec", "capitale-nationale", "lévis",
			"chaîne d'approvisionnement", "supply chain", "approvisionnement",
		},
		Negative: []string{
			"ne plus", "n'est plus", "no longer", "fermeture", "ferme ses portes", "closure", "closing",
			"interdiction", "interdit", "ban", "banned", "faillite", "bankruptcy", "annulé", "cancelled",
		},
		Local: []string{
			"ville de québec", "quebec city", "capitale-nationale", "beauport", "lévis",
			"sainte-foy", "charlesbourg", "ancienne-lorette", "saint-augustin",
		},
		Province: []string{"québec", "quebec"},
		Impact: []string{
			"pénurie", "shortage", "tarif", "tariff", "hausse des prix", "price increase", "inflation",
			"rappel", "recall", "acquisition", "fusion", "merger", "grève", "strike",
			"réglementation", "regulation", "douane", "chaîne d'approvisionnement", "supply chain",
		},
		Categories: []Category{
			{Name: "import", Reason: "l'importation et le commerce international, au cœur de nos approvisionnements",
				Terms: []string{"importation", "import", "imports", "douane", "tarif douanier", "commerce international", "international", "accord commercial", "frontière"}},
			{Name: "distribution", Reason: "directement notre secteur de distribution alimentaire en gros et nos concurrents",
				Terms: []string{"distributeur alimentaire", "grossiste alimentaire", "distribution alimentaire", "food distribution", "food wholesale", "sysco", "gordon food", "concurrence", "concurrent", "wholesale", "grossiste", "chaîne d'approvisionnement", "supply chain", "logistique", "logistics"}},
			{Name: "restaurant", Reason: "notre clientèle de la restauration",
				Terms: []string{"restauration", "restaurant", "foodservice", "service alimentaire", "chef", "menu", "restaurateur", "chaîne resto"}},
			{Name: "hospitality", Reason: "notre clientèle de l'hôtellerie et du tourisme",
				Terms: []string{"hôtellerie", "hôtel", "horeca", "hébergement", "tourisme", "hospitalité"}},
			{Name: "region", Reason: "notre marché local dans la région de Québec et de la Capitale-Nationale",
				Terms: []string{"ville de québec", "quebec city", "capitale-nationale", "beauport", "lévis", "sainte-foy", "charlesbourg", "ancienne-lorette", "saint-augustin"}},
			{Name: "province", Reason: "le marché alimentaire québécois",
				Terms: []string{"québec", "quebec", "montréal", "montreal", "sherbrooke", "gatineau", "trois-rivières", "saguenay", "chicoutimi", "rimouski", "drummondville", "granby", "saint-jean"}},
			{Name: "economic", Reason: "les pressions économiques sur les prix et la disponibilité des produits",
				Terms: []string{"inflation", "prix", "price", "pénurie", "shortage", "demande", "demand"}},
			{Name: "trends", Reason: "les tendances émergentes et les innovations qui transforment notre industrie",
				Terms: []string{"tendances alimentaires", "food trends", "innovation"}},
			{Name: "sustainability", Reason: "les enjeux de développement durable, prioritaires pour notre entreprise et nos partenaires",
				Terms: []string{"durabilité", "sustainability", "local", "régional", "biologique", "organic"}},
			{Name: "regulatory", Reason: "la réglementation qui encadre nos activités de distribution",
				Terms: []string{"réglementation", "regulation", "mapaq", "acia", "cfia", "étiquetage", "salubrité", "rappel", "recall"}},
			{Name: "agriculture", Reason: "l'approvisionnement agricole et les produits que nous distribuons",
				Terms: []string{"agriculture", "agricole", "récolte", "harvest", "producteurs", "upa", "produits frais", "produce", "viande", "meat", "poultry", "volaille", "produits laitiers", "dairy", "surgelés", "frozen", "épices", "condiments", "transport", "entreposage", "warehouse", "livraison", "delivery"}},
		},
		SourceReasons: map[string]string{
			"A": "une source de référence de l'industrie alimentaire",
			"B": "une source spécialisée de l'industrie alimentaire",
			"C": "l'actualité d'affaires du Québec",
			"D": "l'actualité générale touchant notre industrie",
			"E": "des développements importants pour l'industrie alimentaire québécoise",
		},
	}
	for term, w := range weights {
		t.Keywords = append(t.Keywords, Keyword{Term: term, Weight: w})
	}
	return t.normalized()
}
