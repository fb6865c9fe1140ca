package privacy

import (
	"fmt"
	"strings"

	"github.com/zoesolar/intake/internal/core/domain"
)

// groceryRetailers is the vendor table gating private detection: only
// receipts from everyday retailers are candidates at all.
var groceryRetailers = []string{
	// Germany
	"rewe", "lidl", "edeka", "aldi", "netto", "penny", "kaufland",
	"dm", "rossmann", "müller", "norma", "tegut", "real", "globus",
	"famila", "marktkauf",
	// Austria / Switzerland
	"spar", "billa", "hofer", "migros", "coop", "denner",
	// Benelux / France
	"albert heijn", "jumbo", "colruyt", "delhaize", "carrefour",
	"leclerc", "auchan", "intermarché", "monoprix",
	// Spain / UK
	"mercadona", "eroski", "tesco", "sainsbury", "asda", "morrisons",
	"waitrose",
	// US
	"walmart", "target", "costco", "kroger", "safeway", "trader joe",
}

// privateItemKeywords flag line items that are never business expenses:
// tobacco, alcohol, gambling, personal reading.
var privateItemKeywords = []string{
	// tobacco
	"zigarette", "tabak", "cigarette", "tobacco", "marlboro", "camel",
	"lucky strike", "pall mall", "chesterfield", "winston", "vape",
	"e-zigarette", "shisha", "nikotin", "tabakwaren",
	// beer
	"bier", "beer", "pils", "weizen", "weissbier", "radler",
	"krombacher", "warsteiner", "paulaner", "becks", "bitburger",
	"heineken", "carlsberg", "corona", "guinness", "stout", "ipa",
	// wine and spirits
	"wein", "wine", "rotwein", "weisswein", "sekt", "prosecco",
	"champagner", "merlot", "riesling", "spätburgunder", "cabernet",
	"spirituosen", "whisky", "whiskey", "wodka", "vodka", "gin",
	"rum", "cognac", "likör", "schnaps",
	// personal
	"zeitschrift", "zeitung", "magazin", "roman", "taschenbuch",
	"lotto", "glücksspiel", "spielhalle", "casino", "sportwette",
	"lose", "lotterieschein",
}

// Detector decides whether a receipt is a private purchase. A document is
// private only when the vendor is a known retailer AND every line item is
// a private item; mixed carts stay business documents.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

func (d *Detector) Detect(data *domain.ExtractedData) domain.PrivateCheck {
	check := domain.PrivateCheck{}
	if data == nil {
		return check
	}

	vendor := strings.ToLower(data.VendorName)
	retailer := ""
	for _, r := range groceryRetailers {
		if strings.Contains(vendor, r) {
			retailer = r
			break
		}
	}
	if retailer == "" {
		return check
	}
	check.DetectedVendor = retailer
	check.TotalItemCount = len(data.LineItems)

	if len(data.LineItems) == 0 {
		// Nothing to analyze; assume business.
		return check
	}

	hasBusinessItems := false
	for _, item := range data.LineItems {
		desc := strings.ToLower(item.Description)
		private := false
		for _, kw := range privateItemKeywords {
			if strings.Contains(desc, kw) {
				private = true
				break
			}
		}
		if private {
			check.PrivateItemCount++
		} else {
			hasBusinessItems = true
		}
	}

	if check.PrivateItemCount > 0 && !hasBusinessItems {
		check.IsPrivate = true
		check.Reason = fmt.Sprintf("only private items detected (%d/%d positions, tobacco/alcohol at %s)",
			check.PrivateItemCount, check.TotalItemCount, retailer)
	}
	return check
}
