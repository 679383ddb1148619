package storefront

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
)

const (
	msgUnknown      = "⚠️ Sorry, I didn't understand. You can say 'list pune' or 'view 10'."
	msgApology      = "⚠️ Something went wrong on our side. Please try again in a moment."
	msgNoListings   = "No properties found."
	msgNoPage       = "⚠️ Page %d does not exist. There are %d page(s)."
	msgMissingID    = "⚠️ Please provide a property ID. Example: view 123"
	msgNotFound     = "❌ Property not found."
	msgImageCaption = "📸 Property Image"
	msgVideoCaption = "🎥 Property Video"
)

const helpText = `*Property Finder Help*

🏡 Browse:
- list (or list <city>) → available properties
- list 2bhk pune <=50k → filter by BHK, city and price
- view <property id> → details with photos and videos

❓ help → this guide`

// bhkLabel renders "2 BHK", or "1 RK" for a one-room studio.
func bhkLabel(it *domain.Item) string {
	if it.BHK == nil {
		return "-"
	}
	if *it.BHK == 1 && (strings.Contains(strings.ToLower(it.Title), "studio") ||
		strings.Contains(strings.ToLower(it.DescriptionRaw), "studio")) {
		return "1 RK"
	}
	return strconv.Itoa(*it.BHK) + " BHK"
}

func priceLabel(it *domain.Item) string {
	if it.Price == nil {
		return "N/A"
	}
	return catalog.FormatPrice(*it.Price, it.Currency)
}

func listingLine(it *domain.Item) string {
	title, city := it.Title, it.City
	if title == "" {
		title = "Property"
	}
	if city == "" {
		city = "-"
	}
	return fmt.Sprintf("[%d] %s | %s | %s | %s", it.Seq, title, bhkLabel(it), city, priceLabel(it))
}

// listingDetail is the customer view of an item with the broker to contact.
func listingDetail(it *domain.Item) string {
	var b strings.Builder
	if it.DescriptionBeautified != "" {
		b.WriteString(it.DescriptionBeautified)
	} else {
		fmt.Fprintf(&b, "🏠 %s", listingLine(it))
	}
	if it.Locality != "" && !strings.Contains(b.String(), it.Locality) {
		b.WriteString("\n📍 " + it.Locality)
	}
	if it.Price != nil && !strings.Contains(b.String(), priceLabel(it)) {
		b.WriteString("\n💰 " + priceLabel(it))
	}
	if it.ShortCode != "" {
		b.WriteString("\n🔖 Ref: " + it.ShortCode)
	}
	if it.Broker.Name != "" {
		fmt.Fprintf(&b, "\n\n📞 Contact %s on %s", it.Broker.Name, it.Broker.PhoneNumber)
	}
	return b.String()
}
