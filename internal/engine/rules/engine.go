package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
	"github.com/zoesolar/intake/internal/engine/dedup"
)

// SKR03 account constants used by the generic heuristics.
const (
	creditCash     = "1000"
	creditBank     = "1800"
	debitDefault   = "3100" // materials / external services
	debitPhone     = "4220"
	debitHosting   = "4225"
	debitInsurance = "4610"
	debitEnergy    = "4330"
	debitLodging   = "4660"
	debitTravel    = "4670"
	debitFuel      = "4830"
	debitVehicle   = "4110"
	debitCatering  = "4650"
	debitPremises  = "4230"
	debitSolar     = "4810"
	debitRepairs   = "4820"
	debitOffice    = "4930"
	debitPostage   = "4910"
)

// Tax categories, ordered by priority: solar zero-rate > reverse charge >
// reduced rate > tax-free misc > standard rate.
const (
	taxSolarZero     = "0% solar (tax free)"
	taxReverseCharge = "0% intra-community / reverse charge"
	taxReduced       = "7% input tax"
	taxFreeMisc      = "tax free (misc)"
	taxStandard      = "19% input tax"
)

// vendorDebitRules maps vendor-name keywords to debit accounts. First
// matching row wins; rows needing line-item context are handled below.
var vendorDebitRules = []struct {
	keywords []string
	account  string
}{
	{[]string{"telekom", "vodafone", "o2", "telefonica", "congstar"}, debitPhone},
	{[]string{"ionos", "strato", "1&1", "domain", "hetzner", "all-inkl"}, debitHosting},
	{[]string{"obeta", "conrad", "hornbach", "bauhaus", "würth", "toom", "hagebau"}, debitDefault},
	{[]string{"allianz", "versicherung", "insurance", "huk", "vpv"}, debitInsurance},
	{[]string{"stadtwerke", "e.on", "vattenfall", "strom", "gas"}, debitEnergy},
	{[]string{"hotel", "airbnb", "booking", "motel"}, debitLodging},
	{[]string{"db vertrieb", "bahn", "lufthansa", "uber", "bolt", "taxi", "free now"}, debitTravel},
}

var fuelStationKeywords = []string{"shell", "aral", "total", "jet", "tankstelle", "esso", "hem", "star"}
var fuelKeywords = []string{"diesel", "benzin", "super", "kraftstoff", "adblue", "fuel"}

var groceryKeywords = []string{"edeka", "rewe", "lidl", "aldi", "kaufland", "dm", "rossmann", "metro"}
var cateringKeywords = []string{"bewirtung", "trinkgeld", "restaurant", "catering"}

// keywordDebitFallback applies when the vendor is unknown but the text
// content gives the expense away.
var keywordDebitFallback = []struct {
	keywords []string
	account  string
}{
	{[]string{"photovoltaik", "solar", "modul", "wechselrichter", "unterkonstruktion", "pv-anlage"}, debitSolar},
	{[]string{"kraftstoff", "diesel", "benzin"}, debitFuel},
	{[]string{"bewirtung", "trinkgeld", "restaurant", "speisen", "getränke"}, debitCatering},
	{[]string{"büro", "papier", "toner", "ordner", "schreibwaren"}, debitOffice},
	{[]string{"porto", "dhl", "post", "briefmarke", "einschreiben"}, debitPostage},
}

var solarContextKeywords = []string{"solar", "photovoltaik", "pv-anlage", "§12"}

var euTaxIDPrefixes = []string{"AT", "NL", "PL", "FR", "ES", "IT"}

// Engine applies vendor-specific and generic accounting heuristics and
// generates the sequential internal document number. Deterministic: the
// same inputs always produce the same assignment.
type Engine struct {
	numberPrefix     string
	invoiceRecipient string
	storageLocation  string
	smallAmountLimit float64
}

type Config struct {
	NumberPrefix     string
	InvoiceRecipient string
	StorageLocation  string
	SmallAmountLimit float64
}

func New(cfg Config) *Engine {
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "DOC"
	}
	if cfg.SmallAmountLimit <= 0 {
		cfg.SmallAmountLimit = 250
	}
	return &Engine{
		numberPrefix:     cfg.NumberPrefix,
		invoiceRecipient: cfg.InvoiceRecipient,
		storageLocation:  cfg.StorageLocation,
		smallAmountLimit: cfg.SmallAmountLimit,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Apply enriches a copy of the extracted data. The vendor override, when
// present, takes precedence over the generic account/tax heuristics.
func (e *Engine) Apply(data *domain.ExtractedData, prior []*domain.DocumentRecord, settings *domain.Settings, override *domain.VendorRule) *domain.ExtractedData {
	enriched := *data

	vendor := strings.ToLower(enriched.VendorName)
	payment := strings.ToLower(enriched.PaymentMethod)

	var items strings.Builder
	for _, li := range enriched.LineItems {
		items.WriteString(strings.ToLower(li.Description))
		items.WriteByte(' ')
	}
	combined := vendor + " " + strings.ToLower(enriched.Description) + " " +
		strings.ToLower(enriched.TextContent) + " " + items.String()

	// Credit account: cash pays from the till, everything else from bank.
	credit := creditBank
	if containsAny(payment, []string{"bar", "cash", "kasse"}) {
		credit = creditCash
	}
	enriched.CreditAccount = credit

	// Debit account: vendor rules, then keyword fallback, then default.
	debit := e.debitAccount(vendor, combined)

	// Tax category priority chain.
	hasTax7 := enriched.TaxAmount7 > 0 || enriched.TaxRate7 > 0
	hasTax19 := enriched.TaxAmount19 > 0 || enriched.TaxRate19 > 0
	zeroTax := !hasTax7 && !hasTax19

	solarContext := debit == debitSolar || containsAny(combined, solarContextKeywords)
	taxCategory := taxStandard
	switch {
	case solarContext && zeroTax:
		taxCategory = taxSolarZero
	case enriched.ReverseCharge || hasEUTaxID(enriched.VendorTaxID):
		taxCategory = taxReverseCharge
		enriched.ReverseCharge = true
	case hasTax7 && !hasTax19:
		taxCategory = taxReduced
	case (debit == debitInsurance || debit == debitPostage) && zeroTax:
		taxCategory = taxFreeMisc
	}

	// Learned vendor rules beat the heuristics.
	if override != nil {
		if override.AccountID != "" {
			debit = override.AccountID
		}
		if override.TaxCategory != "" && allowedTaxCategory(settings, override.TaxCategory) {
			taxCategory = override.TaxCategory
		}
	}

	enriched.DebitAccount = debit
	enriched.TaxCategory = taxCategory

	if number := e.GenerateSequentialNumber(enriched.DocumentDate, prior); number != "" {
		enriched.InternalDocumentNumber = number
	}

	if e.invoiceRecipient != "" {
		enriched.InvoiceRecipient = e.invoiceRecipient
	}
	if e.storageLocation != "" {
		enriched.StorageLocation = e.storageLocation
	}

	if enriched.PaymentStatus == "" {
		if credit == creditCash || containsAny(payment, []string{"karte", "card", "paypal", "apple", "google"}) {
			enriched.PaymentStatus = "paid"
			if enriched.PaymentDate == "" {
				enriched.PaymentDate = enriched.DocumentDate
			}
		} else {
			enriched.PaymentStatus = "open"
		}
	}

	gross, _ := enriched.Gross()
	enriched.SmallAmount = gross <= e.smallAmountLimit
	enriched.InputTaxDeductible = strings.Contains(taxCategory, "input tax") ||
		taxCategory == taxReverseCharge || taxCategory == taxSolarZero
	enriched.RuleApplied = true

	return &enriched
}

func (e *Engine) debitAccount(vendor, combined string) string {
	for _, rule := range vendorDebitRules {
		if containsAny(vendor, rule.keywords) {
			return rule.account
		}
	}

	// Fuel stations: fuel purchase vs shop/car-wash.
	if containsAny(vendor, fuelStationKeywords) {
		if containsAny(combined, fuelKeywords) {
			return debitFuel
		}
		return debitVehicle
	}

	// Supermarkets: catering vs premises/supplies.
	if containsAny(vendor, groceryKeywords) {
		if containsAny(combined, cateringKeywords) {
			return debitCatering
		}
		return debitPremises
	}

	for _, rule := range keywordDebitFallback {
		if containsAny(combined, rule.keywords) {
			return rule.account
		}
	}

	if containsAny(combined, []string{"reparatur", "wartung"}) && strings.Contains(combined, "kfz") {
		return debitRepairs
	}

	return debitDefault
}

func hasEUTaxID(taxID string) bool {
	upper := strings.ToUpper(taxID)
	for _, p := range euTaxIDPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

func allowedTaxCategory(settings *domain.Settings, category string) bool {
	if settings == nil || len(settings.TaxCategories) == 0 {
		return true
	}
	for _, c := range settings.TaxCategories {
		if c == category {
			return true
		}
	}
	return false
}

// GenerateSequentialNumber produces "<prefix><yy><mm>.<n>" where n is one
// past the highest number already used for that month across the prior
// documents. Returns "" when the document date is unusable.
func (e *Engine) GenerateSequentialNumber(documentDate string, prior []*domain.DocumentRecord) string {
	date, err := time.Parse("2006-01-02", documentDate)
	if err != nil {
		return ""
	}
	prefix := fmt.Sprintf("%s%02d%02d", e.numberPrefix, date.Year()%100, int(date.Month()))

	maxSeq := 0
	for _, doc := range prior {
		if doc.Data == nil {
			continue
		}
		existing := doc.Data.InternalDocumentNumber
		if !strings.HasPrefix(existing, prefix) {
			continue
		}
		parts := strings.Split(existing, ".")
		if len(parts) != 2 {
			continue
		}
		if n, err := strconv.Atoi(parts[1]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s.%d", prefix, maxSeq+1)
}

// NormalizeVendor is the lookup key normalization for vendor rules.
func NormalizeVendor(name string) string {
	return dedup.Normalize(name)
}
