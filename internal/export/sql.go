package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/zoesolar/intake/internal/core/domain"
)

const createTable = `CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    internal_document_number VARCHAR(50),
    file_name VARCHAR(255),
    file_type VARCHAR(100),
    content_hash VARCHAR(64),
    duplicate_of_id UUID,
    uploaded_at TIMESTAMP,
    status VARCHAR(20),
    vendor VARCHAR(255),
    document_date DATE,
    vendor_invoice_number VARCHAR(100),
    vendor_address TEXT,
    vendor_tax_id VARCHAR(50),
    net_amount DECIMAL(10,2),
    tax_amount_7 DECIMAL(10,2),
    tax_amount_19 DECIMAL(10,2),
    gross_amount DECIMAL(10,2),
    debit_account VARCHAR(10),
    credit_account VARCHAR(10),
    tax_category VARCHAR(100),
    payment_method VARCHAR(50),
    payment_status VARCHAR(20),
    payment_date DATE,
    description TEXT,
    cost_center VARCHAR(50),
    project VARCHAR(50),
    storage_location VARCHAR(255),
    recipient TEXT
);`

var insertColumns = []string{
	"id", "internal_document_number", "file_name", "file_type", "content_hash",
	"duplicate_of_id", "uploaded_at", "status",
	"vendor", "document_date", "vendor_invoice_number", "vendor_address", "vendor_tax_id",
	"net_amount", "tax_amount_7", "tax_amount_19", "gross_amount",
	"debit_account", "credit_account", "tax_category",
	"payment_method", "payment_status", "payment_date",
	"description", "cost_center", "project", "storage_location", "recipient",
}

// BuildSQLDump renders the documents as a PostgreSQL script: one CREATE
// TABLE followed by one INSERT per document. Absent values become NULL,
// embedded single quotes are doubled.
func BuildSQLDump(docs []*domain.DocumentRecord, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Accounting PostgreSQL Export\n-- Generated: %s\n\n", now.Format(time.RFC3339))
	b.WriteString(createTable)
	b.WriteString("\n\n")

	for _, doc := range docs {
		data := doc.Data
		if data == nil {
			data = &domain.ExtractedData{}
		}
		values := []string{
			sqlString(doc.ID),
			sqlString(data.InternalDocumentNumber),
			sqlString(doc.FileName),
			sqlString(doc.FileType),
			sqlString(doc.ContentHash),
			sqlString(doc.DuplicateOfID),
			sqlString(doc.UploadedAt.UTC().Format(time.RFC3339)),
			sqlString(string(doc.Status)),
			sqlString(data.VendorName),
			sqlString(data.DocumentDate),
			sqlString(data.VendorInvoiceNumber),
			sqlString(data.VendorAddress),
			sqlString(data.VendorTaxID),
			sqlFloatPtr(data.NetAmount),
			sqlFloat(data.TaxAmount7),
			sqlFloat(data.TaxAmount19),
			sqlFloatPtr(data.GrossAmount),
			sqlString(data.DebitAccount),
			sqlString(data.CreditAccount),
			sqlString(data.TaxCategory),
			sqlString(data.PaymentMethod),
			sqlString(data.PaymentStatus),
			sqlString(data.PaymentDate),
			sqlString(data.Description),
			sqlString(data.CostCenter),
			sqlString(data.Project),
			sqlString(data.StorageLocation),
			sqlString(data.InvoiceRecipient),
		}
		fmt.Fprintf(&b, "INSERT INTO documents (%s) VALUES (%s);\n",
			strings.Join(insertColumns, ", "), strings.Join(values, ", "))
	}
	return []byte(b.String())
}

func sqlString(v string) string {
	if v == "" {
		return "NULL"
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func sqlFloat(v float64) string {
	if v == 0 {
		return "NULL"
	}
	return fmt.Sprintf("%.2f", v)
}

func sqlFloatPtr(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%.2f", *v)
}
