package conversation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-catalog-bot/internal/catalog"
	"github.com/tbourn/go-catalog-bot/internal/domain"
)

// User-facing texts.
const (
	msgWelcome       = "👋 Welcome! Looks like you're new here.\nWhat's your name?"
	msgAskName       = "Please tell me your name."
	msgAskContact    = "Thanks, %s! What's your email address?\n👉 Reply 'skip' to leave it empty."
	msgContactEmpty  = "⚠️ Send your email address or another way to reach you, or 'skip'."
	msgNoEmailSaved  = "ℹ️ No email saved. Use 'editprofile' to add one later."
	msgRegistered    = "✅ You're all set, %s. Your broker code is %s."
	msgUnknown       = "⚠️ Sorry, I didn't understand. Type 'help' for guidance."
	msgApology       = "⚠️ Something went wrong on our side. Please try again in a moment."
	msgNotFound      = "❌ Item not found."
	msgStale         = "⚠️ Item not found. Session cleared."
	msgCancelled     = "❎ Cancelled."
	msgNothingCancel = "Nothing to cancel."
	msgNothingFinal  = "⚠️ Nothing to finalize."
	msgMissingID     = "Please provide an item ID. Example: %s 12"
	msgMediaPrompt   = "Got it! Now upload images/videos.\n👉 Type 'done' when finished, or 'skip' if there are none."
	msgMediaReprompt = "📎 Send images/videos for this item.\n👉 Type 'done' when finished, or 'skip' if there are none."
	msgReceived      = "📥 Received %d file(s). Upload more or type 'done' when finished."
	msgNoCreation    = "⚠️ No active item creation in progress."
	msgNudge         = "👉 Type 'done' when you have finished uploading."
	msgInvalidChoice = "⚠️ Invalid choice. Reply with 1-%d."
	msgNoItems       = "You don't have any items yet."
	msgNoMatches     = "No items match those filters."
	msgMediaCaption  = "📸 Property Media"
	msgResetPrompt   = "🔐 Send your new password (at least %d characters)."
	msgResetShort    = "⚠️ Password must be at least %d characters."
	msgResetDone     = "✅ Your password has been updated."
	msgConfirmAsk    = "🗑 Delete [%s] %s?\n👉 Reply 'yes' to confirm or 'no' to keep it."
	msgConfirmRetry  = "Please reply 'yes' to delete or 'no' to keep it."
)

const helpText = `📖 What I can do:
• Send a description to add an item, e.g. "2BHK furnished flat in Pune for 45k"
• list [page] - your items
• view <id> - details and media
• share <id> [number] - client-ready summary
• edit <id> - change price, city, BHK, furnishing or description
• activate <id> / disable <id>
• delete <id>
• profile / editprofile
• cancel - leave the current step`

var itemMenu = []string{
	catalog.FieldPrice,
	catalog.FieldCity,
	catalog.FieldBHK,
	catalog.FieldFurnishing,
	catalog.FieldDescription,
}

var profileMenu = []string{
	catalog.FieldName,
	catalog.FieldEmail,
}

var numerals = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

var titleCase = cases.Title(language.English)

func menuText(header string, fields []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\nWhat do you want to edit?\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "\n%s %s", numerals[i], fieldLabel(f))
	}
	b.WriteString("\n\n👉 Reply with the number")
	return b.String()
}

func fieldLabel(f string) string {
	if f == catalog.FieldBHK {
		return "BHK"
	}
	return titleCase.String(f)
}

func valuePrompt(field string) string {
	switch field {
	case catalog.FieldPrice:
		return "Send me the new price, e.g. 45000 or 45k."
	case catalog.FieldBHK:
		return "Send me the new number of bedrooms (BHK)."
	case catalog.FieldFurnishing:
		return "Send me the new furnishing: unfurnished, semi or fully."
	case catalog.FieldEmail:
		return "Send me your new email address."
	default:
		return "Send me the new " + field + "."
	}
}

func itemLabel(it *domain.Item) string {
	title := it.Title
	if title == "" {
		title = "Property"
	}
	return fmt.Sprintf("[%s] %s", it.SubjectID, title)
}

func detailLines(it *domain.Item) string {
	lines := []string{"🏠 " + itemLabel(it)}
	if it.Price != nil {
		lines = append(lines, "Price: "+catalog.FormatPrice(*it.Price, it.Currency))
	}
	if it.SaleOrRent != "" {
		lines = append(lines, "Type: "+titleCase.String(it.SaleOrRent))
	}
	if it.City != "" {
		lines = append(lines, "City: "+it.City)
	}
	if it.Locality != "" {
		lines = append(lines, "Locality: "+it.Locality)
	}
	if it.AreaSqft != nil {
		lines = append(lines, fmt.Sprintf("Area: %.0f sqft", *it.AreaSqft))
	}
	if it.BHK != nil {
		lines = append(lines, fmt.Sprintf("BHK: %d", *it.BHK))
	}
	if it.Bathrooms != nil {
		lines = append(lines, fmt.Sprintf("Bathrooms: %d", *it.Bathrooms))
	}
	if it.Furnishing != "" {
		lines = append(lines, "Furnishing: "+titleCase.String(it.Furnishing))
	}
	if it.ShortCode != "" {
		lines = append(lines, "Code: "+it.ShortCode)
	}
	lines = append(lines, "Status: "+titleCase.String(it.Status))
	return strings.Join(lines, "\n")
}

func draftSummary(it *domain.Item, mediaCount int) string {
	var b strings.Builder
	b.WriteString("📝 New item added as Draft.\n\n")
	b.WriteString(detailLines(it))
	fmt.Fprintf(&b, "\nMedia: %d file(s)", mediaCount)
	fmt.Fprintf(&b, "\n\n👉 Reply 'activate %s' to publish", it.SubjectID)
	fmt.Fprintf(&b, "\n👉 Reply 'disable %s' to hide later", it.SubjectID)
	return b.String()
}

// shareText is the client-facing summary a broker forwards.
func shareText(it *domain.Item, broker *domain.Broker) string {
	var b strings.Builder
	if it.DescriptionBeautified != "" {
		b.WriteString(it.DescriptionBeautified)
	} else {
		b.WriteString("🏠 " + it.Title)
	}
	if it.City != "" && !strings.Contains(b.String(), it.City) {
		b.WriteString("\n📍 " + it.City)
	}
	if it.ShortCode != "" {
		b.WriteString("\n🔖 Ref: " + it.ShortCode)
	}
	if broker != nil && broker.Name != "" {
		fmt.Fprintf(&b, "\n\n📞 Contact %s on %s", broker.Name, broker.PhoneNumber)
	}
	return b.String()
}

func profileText(b *domain.Broker, stats map[string]int64) string {
	email := b.Email
	if email == "" {
		email = "-"
	}
	var total int64
	for _, n := range stats {
		total += n
	}
	return fmt.Sprintf("👤 %s\n📞 %s\n✉️ %s\n🔖 %s\n📦 Items: %d (%d active, %d draft, %d disabled)",
		b.Name, b.PhoneNumber, email, b.BrokerCode,
		total, stats[domain.StatusActive], stats[domain.StatusDraft], stats[domain.StatusDisabled])
}

func uploadReport(uploaded int, failed []int) string {
	if len(failed) == 0 {
		return fmt.Sprintf("✅ %d uploaded. Send more or type 'done' when finished.", uploaded)
	}
	nums := make([]string, len(failed))
	for i, n := range failed {
		nums[i] = fmt.Sprintf("#%d", n)
	}
	return fmt.Sprintf("✅ %d uploaded, ⚠️ %d failed: %s", uploaded, len(failed), strings.Join(nums, ", "))
}
