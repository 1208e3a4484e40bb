package interpret

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

// Phrase maps a set of phrasings to a catalog category. Phrasings are
// compared after lowercasing and removing accents.
type Phrase struct {
	Category query.Category
	Keywords []string
}

// DefaultPhrases is checked in order; more specific phrasings come first.
var DefaultPhrases = []Phrase{
	{query.CategoryBestMarginCategory, []string{
		"rubro con mejor margen", "mejor margen por rubro", "categoria con mejor margen",
		"mejor margen por categoria", "category with the best margin", "best margin category",
	}},
	{query.CategoryWorstMarginBrand, []string{"peor margen", "menor margen", "worst margin", "lowest margin"}},
	{query.CategoryBestMarginBrand, []string{
		"marca con mejor margen", "mejor margen por marca", "mejor margen", "mayor margen",
		"brand with the best margin", "best margin", "highest margin",
	}},
	{query.CategoryMarginBySeller, []string{"margen por vendedor", "margin by seller"}},
	{query.CategoryProfitBySeller, []string{
		"ganancia por vendedor", "utilidad por vendedor", "rentabilidad por vendedor", "profit by seller",
	}},
	{query.CategoryClientsBySeller, []string{"clientes por vendedor", "clients by seller", "customers by seller"}},
	{query.CategoryUnitsByBrand, []string{"unidades por marca", "units by brand"}},
	{query.CategorySalesBySeller, []string{
		"ventas por vendedor", "por vendedor", "mejor vendedor", "ranking de vendedores",
		"sales by seller", "top seller", "best seller", "by seller",
	}},
	{query.CategoryTopBrands, []string{"marcas mas vendidas", "top marcas", "por marca", "top brands", "by brand"}},
	{query.CategoryTopCategories, []string{
		"rubros mas vendidos", "por rubro", "por categoria", "top categories", "by category",
	}},
	{query.CategoryTopClients, []string{
		"mejores clientes", "por cliente", "top clients", "top customers", "by client", "by customer",
	}},
	{query.CategoryTotalSummary, []string{
		"ventas totales", "total de ventas", "total vendido", "resumen", "cuanto vendimos", "cuanto se vendio",
		"total sales", "sales total", "summary", "how much did we sell", "how much we sold",
	}},
}

var monthNames = map[string]int{
	"enero": 1, "febrero": 2, "marzo": 3, "abril": 4, "mayo": 5, "junio": 6,
	"julio": 7, "agosto": 8, "septiembre": 9, "setiembre": 9, "octubre": 10,
	"noviembre": 11, "diciembre": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

var (
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	limitPattern  = regexp.MustCompile(`\b(?:top|los|las|primeros|primeras|first)\s+(\d{1,3})\b`)
	sellerPattern = regexp.MustCompile(`\b(?:del vendedor|de la vendedora|vendedor|vendedora|for seller|seller)\s+([a-z][a-z0-9.\-]*)`)
	brandPattern  = regexp.MustCompile(`\b(?:de la marca|marca|for brand|brand)\s+([a-z][a-z0-9.\-]*)`)
	wordPattern   = regexp.MustCompile(`[a-z]+`)
)

// words that can follow "vendedor"/"marca" without being a name
var stopWords = map[string]bool{
	"con": true, "en": true, "de": true, "del": true, "por": true, "y": true, "el": true, "la": true,
	"with": true, "in": true, "of": true, "by": true, "and": true, "the": true,
}

// Words naming a dimension. A question that mentions one must be answered by
// an intent that groups or filters on it.
var dimensionWords = map[query.Dimension][]string{
	query.GroupSeller:   {"vendedor", "vendedora", "vendedores", "vendedoras", "seller", "sellers", "salesperson"},
	query.GroupBrand:    {"marca", "marcas", "brand", "brands"},
	query.GroupCategory: {"rubro", "rubros", "categoria", "categorias", "category", "categories"},
	query.GroupClient:   {"cliente", "clientes", "client", "clients", "customer", "customers", "razon social"},
}

// Qualifiers no catalog intent encodes: the question goes to the assistant.
var (
	ascendingWords = []string{
		"lowest", "least", "worst", "fewest", "bottom", "smallest",
		"menor", "menores", "menos", "peor", "peores", "minimo", "minima", "minimos", "minimas",
	}
	relativeTimeWords = []string{
		"this year", "last year", "this month", "last month", "today", "yesterday", "week", "quarter",
		"este ano", "ano pasado", "este mes", "mes pasado", "hoy", "ayer", "semana", "trimestre",
	}
	unsupportedWords = []string{
		"region", "zona", "sucursal", "tienda", "provincia", "ciudad", "pais",
		"branch", "store", "city", "country",
	}
)

// KeywordMatcher resolves questions to intents without calling the assistant.
type KeywordMatcher struct {
	phrases []Phrase
}

// NewKeywordMatcher builds a matcher; nil phrases selects DefaultPhrases.
func NewKeywordMatcher(phrases []Phrase) *KeywordMatcher {
	if phrases == nil {
		phrases = DefaultPhrases
	}
	folded := make([]Phrase, len(phrases))
	for i, p := range phrases {
		kws := make([]string, len(p.Keywords))
		for j, k := range p.Keywords {
			kws[j] = fold(k)
		}
		folded[i] = Phrase{Category: p.Category, Keywords: kws}
	}
	return &KeywordMatcher{phrases: folded}
}

// Category returns the first category whose phrasing occurs in the question.
func (m *KeywordMatcher) Category(question string) (query.Category, bool) {
	q := fold(question)
	for _, p := range m.phrases {
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(q, kw) {
				return p.Category, true
			}
		}
	}
	return "", false
}

// Match returns the catalog intent for the question with any month, year,
// seller, brand or limit mentioned applied as filters. Seller and brand names
// are only taken when they name a label present in ds. It reports false when
// the question asks for something the catalog intent would not answer, such
// as an unresolved name, a dimension the intent ignores or a lowest-first
// ranking.
func (m *KeywordMatcher) Match(question string, ds *dataset.Dataset) (query.Intent, bool) {
	cat, ok := m.Category(question)
	if !ok {
		return query.Intent{}, false
	}
	in, ok := query.Lookup(cat)
	if !ok {
		return query.Intent{}, false
	}

	q := fold(question)
	words := " " + strings.Join(wordPattern.FindAllString(q, -1), " ") + " "
	if mentionsAny(words, relativeTimeWords) || mentionsAny(words, unsupportedWords) {
		return query.Intent{}, false
	}
	if in.Sort.Order != query.OrderAsc && mentionsAny(words, ascendingWords) {
		return query.Intent{}, false
	}

	in.Filters = extractFilters(q, ds)
	if in.Filters.Seller != "" && in.GroupBy == query.GroupSeller {
		in.GroupBy = query.GroupNone
	}
	if in.Filters.Brand != "" && in.GroupBy == query.GroupBrand {
		in.GroupBy = query.GroupNone
	}
	for dim, kws := range dimensionWords {
		if mentionsAny(words, kws) && !covers(in, dim) {
			return query.Intent{}, false
		}
	}

	if sm := limitPattern.FindStringSubmatch(q); sm != nil {
		if n, err := strconv.Atoi(sm[1]); err == nil && n > 0 {
			in.Limit = n
		}
	}
	return in.Normalize(), true
}

// covers reports whether in groups, filters or counts on dim.
func covers(in query.Intent, dim query.Dimension) bool {
	if in.GroupBy == dim {
		return true
	}
	switch dim {
	case query.GroupSeller:
		return in.Filters.Seller != ""
	case query.GroupBrand:
		return in.Filters.Brand != ""
	case query.GroupCategory:
		return in.Filters.Category != ""
	case query.GroupClient:
		return in.Filters.Client != "" || in.Metric == query.MetricDistinctClients
	}
	return false
}

// mentionsAny reports whether a phrase occurs as whole words in words, which
// must be space separated and padded.
func mentionsAny(words string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(words, " "+p+" ") {
			return true
		}
	}
	return false
}

func extractFilters(q string, ds *dataset.Dataset) query.Filters {
	var f query.Filters
	for _, w := range wordPattern.FindAllString(q, -1) {
		if month, ok := monthNames[w]; ok {
			f.Month = query.IntPtr(month)
			break
		}
	}
	if y := yearPattern.FindString(q); y != "" {
		if year, err := strconv.Atoi(y); err == nil {
			f.Year = query.IntPtr(year)
		}
	}
	f.Seller = nameAfter(sellerPattern, q, func() map[string]string {
		return labelWords(ds, func(r dataset.Record) string { return r.Seller })
	})
	f.Brand = nameAfter(brandPattern, q, func() map[string]string {
		return labelWords(ds, func(r dataset.Record) string { return r.Brand })
	})
	return f
}

// nameAfter returns the first word following re that is part of a known
// label, spelled as in the dataset.
func nameAfter(re *regexp.Regexp, q string, known func() map[string]string) string {
	var words map[string]string
	for _, sm := range re.FindAllStringSubmatch(q, -1) {
		w := strings.Trim(sm[1], ".-")
		if w == "" || stopWords[w] {
			continue
		}
		if words == nil {
			words = known()
		}
		if name, ok := words[w]; ok {
			return name
		}
	}
	return ""
}

// labelWords maps each folded word of a dimension's labels to its spelling.
func labelWords(ds *dataset.Dataset, field func(dataset.Record) string) map[string]string {
	words := map[string]string{}
	if ds == nil {
		return words
	}
	seen := map[string]bool{}
	for _, r := range ds.Records {
		label := field(r)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		for _, piece := range strings.FieldsFunc(label, func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsDigit(c)
		}) {
			if k := fold(piece); k != "" {
				if _, ok := words[k]; !ok {
					words[k] = piece
				}
			}
		}
	}
	return words
}

var accentFolder = runes.Remove(runes.In(unicode.Mn))

// fold lowercases, strips accents and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, accentFolder, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
