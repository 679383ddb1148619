package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-catalog-bot/internal/domain"
)

var (
	reBHK       = regexp.MustCompile(`(\d+)\s*(?:bhk|rk|bed(?:room)?s?)\b`)
	reBath      = regexp.MustCompile(`(\d+)\s*(?:bath(?:room)?s?)\b`)
	reArea      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:sq\.?\s*ft|sqft|square\s+feet)`)
	rePriceTag  = regexp.MustCompile(`(?:₹|\brs\.?|\binr|\bprice|\brent|\bfor|@)\s*:?\s*(\d+(?:[.,]\d+)*)\s*(crores?|cr|lakhs?|lacs?|l|k)?\b`)
	rePriceUnit = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(crores?|cr|lakhs?|lacs?|k)\b`)
	reCityIn    = regexp.MustCompile(`\bin\s+([a-z][a-z ]{1,30}?)(?:[,.;!]|\s+for\b|\s+with\b|\s+near\b|\s+at\b|\s+\d|$)`)
	reNear      = regexp.MustCompile(`\bnear\s+([a-z][a-z ]{1,40}?)(?:[,.;!]|\s+for\b|\s+with\b|\s+in\b|\s+\d|$)`)
)

// knownCities is consulted before the "in <place>" heuristic so that
// descriptions like "2bhk andheri mumbai 40k" still resolve a city.
var knownCities = []string{
	"navi mumbai", "mumbai", "pune", "delhi", "new delhi", "bangalore", "bengaluru",
	"hyderabad", "chennai", "kolkata", "noida", "gurgaon", "gurugram", "thane",
	"ahmedabad", "jaipur", "lucknow", "indore", "chandigarh", "kochi", "goa",
}

// RuleExtractor pulls item attributes out of a description with regular
// expressions. It never fails: unrecognized attributes are left empty.
type RuleExtractor struct{}

// Extract implements Extractor.
func (RuleExtractor) Extract(_ context.Context, text string) (ItemFields, error) {
	raw := strings.TrimSpace(text)
	low := strings.ToLower(raw)
	title := cases.Title(language.English)

	f := ItemFields{
		DescriptionRaw: raw,
		SaleOrRent:     "rent",
		Currency:       "INR",
	}

	if m := reBHK.FindStringSubmatch(low); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.BHK = &n
		}
	}
	if m := reBath.FindStringSubmatch(low); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.Bathrooms = &n
		}
	}
	if m := reArea.FindStringSubmatch(low); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			f.AreaSqft = &v
		}
	}
	if p, ok := extractPrice(low); ok {
		f.Price = &p
	}

	f.Furnishing = ParseFurnishing(low)

	if strings.Contains(low, "sale") || strings.Contains(low, "sell") || strings.Contains(low, "resale") {
		f.SaleOrRent = "sale"
	}

	for _, c := range knownCities {
		if strings.Contains(low, c) {
			f.City = title.String(c)
			break
		}
	}
	if f.City == "" {
		if m := reCityIn.FindStringSubmatch(low); m != nil {
			f.City = title.String(strings.TrimSpace(m[1]))
		}
	}
	if m := reNear.FindStringSubmatch(low); m != nil {
		f.Locality = title.String(strings.TrimSpace(m[1]))
	}

	f.Title = buildTitle(f)
	f.DescriptionBeautified = Beautify(f)
	return f, nil
}

// ParseFurnishing maps free text to one of the furnishing constants, or ""
// when nothing recognizable is present.
func ParseFurnishing(s string) string {
	low := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(low, "unfurnished") || strings.Contains(low, "un-furnished") || low == "none" || low == "no":
		return domain.FurnishingNone
	case strings.Contains(low, "semi"):
		return domain.FurnishingSemi
	case strings.Contains(low, "fully") || strings.Contains(low, "full") || low == "furnished" || strings.Contains(low, " furnished"):
		return domain.FurnishingFully
	default:
		return ""
	}
}

// ParsePrice parses "45000", "45k", "1.2 cr", "85 lakh" into rupees.
func ParsePrice(s string) (float64, bool) {
	low := strings.ToLower(strings.TrimSpace(s))
	low = strings.TrimPrefix(low, "₹")
	low = strings.TrimPrefix(low, "rs.")
	low = strings.TrimPrefix(low, "rs")
	low = strings.TrimSpace(low)
	if m := rePriceUnit.FindStringSubmatch(low); m != nil && strings.HasPrefix(low, m[1]) {
		return scalePrice(m[1], m[2])
	}
	return scalePrice(low, "")
}

func extractPrice(low string) (float64, bool) {
	if m := rePriceTag.FindStringSubmatch(low); m != nil {
		if v, ok := scalePrice(m[1], m[2]); ok {
			return v, true
		}
	}
	if m := rePriceUnit.FindStringSubmatch(low); m != nil {
		return scalePrice(m[1], m[2])
	}
	return 0, false
}

func scalePrice(num, unit string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	switch {
	case strings.HasPrefix(unit, "cr"):
		v *= 1e7
	case strings.HasPrefix(unit, "la"), unit == "l":
		v *= 1e5
	case unit == "k":
		v *= 1e3
	}
	return v, true
}

func buildTitle(f ItemFields) string {
	var parts []string
	if f.BHK != nil {
		parts = append(parts, fmt.Sprintf("%d BHK", *f.BHK))
	} else {
		parts = append(parts, "Property")
	}
	switch f.Furnishing {
	case domain.FurnishingFully:
		parts = append(parts, "Fully Furnished")
	case domain.FurnishingSemi:
		parts = append(parts, "Semi Furnished")
	case domain.FurnishingNone:
		parts = append(parts, "Unfurnished")
	}
	if f.SaleOrRent == "sale" {
		parts = append(parts, "for Sale")
	} else {
		parts = append(parts, "for Rent")
	}
	if f.City != "" {
		parts = append(parts, "in "+f.City)
	}
	return strings.Join(parts, " ")
}

// Beautify renders a compact multi-line listing from extracted fields.
func Beautify(f ItemFields) string {
	var b strings.Builder
	b.WriteString("🏠 " + buildTitle(f))
	if f.Locality != "" {
		b.WriteString("\n📍 Near " + f.Locality)
	}
	if f.Price != nil {
		b.WriteString("\n💰 " + FormatPrice(*f.Price, f.Currency))
	}
	if f.AreaSqft != nil {
		b.WriteString(fmt.Sprintf("\n📐 %.0f sq ft", *f.AreaSqft))
	}
	if f.Bathrooms != nil {
		b.WriteString(fmt.Sprintf("\n🛁 %d bath", *f.Bathrooms))
	}
	return b.String()
}

// FormatPrice renders rupee amounts in lakh/crore notation.
func FormatPrice(v float64, currency string) string {
	sym := "₹"
	if currency != "" && currency != "INR" {
		sym = currency + " "
	}
	switch {
	case v >= 1e7:
		return fmt.Sprintf("%s%s Cr", sym, trimFloat(v/1e7))
	case v >= 1e5:
		return fmt.Sprintf("%s%s Lakh", sym, trimFloat(v/1e5))
	default:
		return fmt.Sprintf("%s%s", sym, trimFloat(v))
	}
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
