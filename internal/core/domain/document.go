package domain

import "time"

type DocumentStatus string

const (
	StatusProcessing   DocumentStatus = "processing"
	StatusCompleted    DocumentStatus = "completed"
	StatusReviewNeeded DocumentStatus = "review_needed"
	StatusError        DocumentStatus = "error"
	StatusDuplicate    DocumentStatus = "duplicate"
	StatusPrivate      DocumentStatus = "private"
)

// LineItem is a single position on an invoice or receipt.
type LineItem struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ExtractedData is the normalized output of the vision service plus the
// accounting fields derived by the rule engine.
type ExtractedData struct {
	VendorName          string `json:"vendor_name,omitempty"`
	VendorAddress       string `json:"vendor_address,omitempty"`
	VendorTaxID         string `json:"vendor_tax_id,omitempty"`
	DocumentDate        string `json:"document_date,omitempty"` // ISO yyyy-mm-dd
	VendorInvoiceNumber string `json:"vendor_invoice_number,omitempty"`

	NetAmount   *float64 `json:"net_amount,omitempty"`
	TaxRate7    float64  `json:"tax_rate_7,omitempty"`
	TaxAmount7  float64  `json:"tax_amount_7,omitempty"`
	TaxRate19   float64  `json:"tax_rate_19,omitempty"`
	TaxAmount19 float64  `json:"tax_amount_19,omitempty"`
	GrossAmount *float64 `json:"gross_amount,omitempty"`

	PaymentMethod string     `json:"payment_method,omitempty"`
	LineItems     []LineItem `json:"line_items,omitempty"`

	CostCenter string `json:"cost_center,omitempty"`
	Project    string `json:"project,omitempty"`

	// Derived accounting fields, set by the rule engine.
	DebitAccount           string `json:"debit_account,omitempty"`
	CreditAccount          string `json:"credit_account,omitempty"`
	TaxCategory            string `json:"tax_category,omitempty"`
	InternalDocumentNumber string `json:"internal_document_number,omitempty"`
	RuleApplied            bool   `json:"rule_applied,omitempty"`

	PaymentStatus    string `json:"payment_status,omitempty"`
	PaymentDate      string `json:"payment_date,omitempty"`
	StorageLocation  string `json:"storage_location,omitempty"`
	InvoiceRecipient string `json:"invoice_recipient,omitempty"`

	SmallAmount        bool `json:"small_amount,omitempty"`
	InputTaxDeductible bool `json:"input_tax_deductible,omitempty"`
	ReverseCharge      bool `json:"reverse_charge,omitempty"`
	PrivatePortion     bool `json:"private_portion,omitempty"`

	Description string `json:"description,omitempty"`
	TextContent string `json:"text_content,omitempty"`

	// OCRScore is always present once classification has run; absent
	// model output is normalized to 0.
	OCRScore     float64 `json:"ocr_score"`
	OCRRationale string  `json:"ocr_rationale,omitempty"`
}

// Gross returns the gross amount and whether it was extracted at all.
func (d *ExtractedData) Gross() (float64, bool) {
	if d == nil || d.GrossAmount == nil {
		return 0, false
	}
	return *d.GrossAmount, true
}

// Attachment is a file absorbed into a document by a merge.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Key      string `json:"key"` // object storage key
}

// DocumentRecord is the unit of work of the intake pipeline.
type DocumentRecord struct {
	ID          string         `json:"id"`
	FileName    string         `json:"file_name"`
	FileType    string         `json:"file_type"`
	StorageKey  string         `json:"storage_key"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	Status      DocumentStatus `json:"status"`
	Data        *ExtractedData `json:"data"`
	ContentHash string         `json:"content_hash,omitempty"`
	Error       string         `json:"error,omitempty"`

	// Set only while Status == StatusDuplicate.
	DuplicateOfID       string  `json:"duplicate_of_id,omitempty"`
	DuplicateReason     string  `json:"duplicate_reason,omitempty"`
	DuplicateConfidence float64 `json:"duplicate_confidence,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DuplicateMatch is the transient result of duplicate detection.
// Confidence is in (0,1].
type DuplicateMatch struct {
	Document   *DocumentRecord
	Reason     string
	Confidence float64
}

// PrivateCheck is the result of private-document detection.
type PrivateCheck struct {
	IsPrivate        bool
	DetectedVendor   string
	Reason           string
	PrivateItemCount int
	TotalItemCount   int
}

// VendorRule maps a normalized vendor name to a default account and tax
// category, learned from prior manual corrections.
type VendorRule struct {
	VendorName  string    `json:"vendor_name"`
	AccountID   string    `json:"account_id"`
	TaxCategory string    `json:"tax_category"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settings is the global application configuration kept in the store.
type Settings struct {
	ID            string   `json:"id"` // always "global"
	TaxCategories []string `json:"tax_categories"`
}

// ClassificationOutcome is the classifier's verdict for one document.
type ClassificationOutcome struct {
	Status DocumentStatus // StatusCompleted, StatusReviewNeeded or StatusError
	Error  string
}

// BatchFile is one file accepted into an ingestion batch.
type BatchFile struct {
	ID       string
	Name     string
	MimeType string
	Content  []byte
}

// BatchSummary reports the fold-in result of one processed batch.
type BatchSummary struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Review     int `json:"review"`
	Errors     int `json:"errors"`
	Duplicates int `json:"duplicates"`
	Private    int `json:"private"`
}

func (s *BatchSummary) Count(status DocumentStatus) {
	s.Total++
	switch status {
	case StatusCompleted:
		s.Completed++
	case StatusReviewNeeded:
		s.Review++
	case StatusError:
		s.Errors++
	case StatusDuplicate:
		s.Duplicates++
	case StatusPrivate:
		s.Private++
	}
}
