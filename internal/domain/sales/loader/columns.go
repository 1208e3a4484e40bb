package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ColumnMapping names the source header for each role. Empty means "detect".
type ColumnMapping struct {
	Sale     string `json:"sale"`
	Cost     string `json:"cost"`
	Quantity string `json:"quantity"`
	Seller   string `json:"seller"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
	Client   string `json:"client"`
	Date     string `json:"date"`
}

// DefaultColumns returns the header names used by the usual accounting export.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		Sale:     "Total",
		Cost:     "Costo",
		Quantity: "Cantidad",
		Seller:   "Vendedor",
		Brand:    "Marca",
		Category: "Rubro",
		Client:   "Razón Social",
		Date:     "Fecha Emisión",
	}
}

// Merge returns m with empty roles taken from fallback.
func (m ColumnMapping) Merge(fallback ColumnMapping) ColumnMapping {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return ColumnMapping{
		Sale:     pick(m.Sale, fallback.Sale),
		Cost:     pick(m.Cost, fallback.Cost),
		Quantity: pick(m.Quantity, fallback.Quantity),
		Seller:   pick(m.Seller, fallback.Seller),
		Brand:    pick(m.Brand, fallback.Brand),
		Category: pick(m.Category, fallback.Category),
		Client:   pick(m.Client, fallback.Client),
		Date:     pick(m.Date, fallback.Date),
	}
}

type role int

const (
	roleSale role = iota
	roleCost
	roleQuantity
	roleSeller
	roleBrand
	roleCategory
	roleClient
	roleDate
	roleCount
)

var roleNames = [roleCount]string{"sale", "cost", "quantity", "seller", "brand", "category", "client", "date"}

func (m ColumnMapping) byRole() [roleCount]string {
	return [roleCount]string{m.Sale, m.Cost, m.Quantity, m.Seller, m.Brand, m.Category, m.Client, m.Date}
}

// Header keywords per role (multi-language). Sale is matched last so that
// headers such as "Total Costo" land on cost first.
var roleKeywords = []struct {
	role     role
	keywords []string
}{
	{roleCost, []string{"costo", "cost"}},
	{roleQuantity, []string{"cantidad", "cant", "unidades", "qty", "quantity", "units"}},
	{roleSeller, []string{"vendedor", "seller", "salesperson", "vend"}},
	{roleBrand, []string{"marca", "brand"}},
	{roleCategory, []string{"rubro", "categoria", "category", "familia"}},
	{roleClient, []string{"razon social", "cliente", "client", "customer", "company"}},
	{roleDate, []string{"fecha", "date"}},
	{roleSale, []string{"total", "venta", "importe", "monto", "sale", "amount"}},
}

// columnIndex holds resolved header positions, -1 when absent.
type columnIndex [roleCount]int

func (c columnIndex) has(r role) bool { return c[r] >= 0 }

// SuggestColumns attempts to auto-match roles based on header names.
func SuggestColumns(headers []string) ColumnMapping {
	idx := suggest(headers, newColumnIndex(), make(map[int]bool))
	var names [roleCount]string
	for r := role(0); r < roleCount; r++ {
		if idx[r] >= 0 {
			names[r] = strings.TrimSpace(headers[idx[r]])
		}
	}
	return ColumnMapping{
		Sale:     names[roleSale],
		Cost:     names[roleCost],
		Quantity: names[roleQuantity],
		Seller:   names[roleSeller],
		Brand:    names[roleBrand],
		Category: names[roleCategory],
		Client:   names[roleClient],
		Date:     names[roleDate],
	}
}

func newColumnIndex() columnIndex {
	var idx columnIndex
	for i := range idx {
		idx[i] = -1
	}
	return idx
}

// resolveColumns maps configured names to positions, then fills gaps from keywords.
func resolveColumns(headers []string, mapping ColumnMapping) columnIndex {
	idx := newColumnIndex()
	used := make(map[int]bool)

	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = foldHeader(h)
	}

	for r, name := range mapping.byRole() {
		want := foldHeader(name)
		if want == "" {
			continue
		}
		for i, h := range folded {
			if h == want && !used[i] {
				idx[r] = i
				used[i] = true
				break
			}
		}
	}

	return suggest(headers, idx, used)
}

func suggest(headers []string, idx columnIndex, used map[int]bool) columnIndex {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = foldHeader(h)
	}

	for _, rk := range roleKeywords {
		if idx[rk.role] >= 0 {
			continue
		}
	search:
		for _, kw := range rk.keywords {
			for i, h := range folded {
				if used[i] || h == "" {
					continue
				}
				if h == kw || strings.Contains(h, kw) {
					idx[rk.role] = i
					used[i] = true
					break search
				}
			}
		}
	}
	return idx
}

var accentFolder = runes.Remove(runes.In(unicode.Mn))

// foldHeader lowercases, strips accents and collapses whitespace so that
// "Razón  Social " and "razon social" compare equal.
func foldHeader(h string) string {
	t := transform.Chain(norm.NFD, accentFolder, norm.NFC)
	out, _, err := transform.String(t, h)
	if err != nil {
		out = h
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Fingerprint creates a stable hash from header names.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, foldHeader(h))
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}
