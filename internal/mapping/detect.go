package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fieldAliases lists known header spellings per canonical field, most
// specific first. Detection tries aliases in this order, so "prix achat"
// claims its column before the generic "prix" gets a chance.
var fieldAliases = map[Field][]string{
	FieldEAN: {
		"code ean", "ean 13", "ean13", "ean", "gencod", "gtin", "code barre", "barcode",
	},
	FieldReference: {
		"reference fournisseur", "ref fournisseur", "code article", "reference", "ref", "sku",
	},
	FieldName: {
		"designation", "libelle", "nom du produit", "product name", "nom", "produit", "article", "description",
	},
	FieldBrand: {
		"marque", "fabricant", "brand", "manufacturer",
	},
	FieldCategory: {
		"categorie", "famille", "rayon", "category", "gamme",
	},
	FieldPurchasePrice: {
		"prix achat", "prix d achat", "pau ht", "pa ht", "pau", "tarif ht", "purchase price", "prix ht", "prix unitaire", "tarif", "prix",
	},
	FieldIndicativePrice: {
		"prix indicatif", "prix public", "prix conseille", "prix de vente conseille", "pvc", "pvp", "retail price", "prix ttc",
	},
	FieldStockQuantity: {
		"quantite en stock", "stock quantity", "quantite", "qte", "qty", "stock",
	},
	FieldStockStatus: {
		"disponibilite", "etat du stock", "stock status", "statut stock", "dispo", "availability",
	},
}

var headerCleaner = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeHeader lowercases a raw header cell, strips diacritics and
// collapses punctuation to single spaces, so "Désignation " and
// "designation" compare equal.
func NormalizeHeader(raw string) string {
	s, _, err := transform.String(headerCleaner, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// DetectMapping inspects a header row and returns the best-effort column
// mapping. For each field, aliases are tried most specific first and the
// leftmost matching unclaimed column wins. A header matches an alias when
// either string contains the other, so "Code EAN" matches the "ean" alias
// and the "ref" alias matches a bare "Référence" header.
func DetectMapping(headers []string) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	mapping := make(Mapping, len(fieldAliases))
	claimed := make(map[int]bool, len(headers))

	for _, field := range AllFields() {
		for _, alias := range fieldAliases[field] {
			col := -1
			for i, header := range normalized {
				if claimed[i] || header == "" {
					continue
				}
				if headerMatches(header, alias) {
					col = i
					break
				}
			}
			if col >= 0 {
				mapping.Set(field, col)
				claimed[col] = true
				break
			}
		}
	}
	return mapping
}

func headerMatches(header, alias string) bool {
	return strings.Contains(header, alias) || strings.Contains(alias, header)
}

// HasIdentifier reports whether the mapping carries at least one product
// key column. Imports without any key column are rejected up front.
func (m Mapping) HasIdentifier() bool {
	if _, ok := m.Column(FieldEAN); ok {
		return true
	}
	_, ok := m.Column(FieldReference)
	return ok
}
