package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/zoesolar/intake/internal/core/domain"
)

const sheetName = "Documents"

var xlsxHeaders = []string{
	"Document Number",
	"Date",
	"Vendor",
	"Invoice Number",
	"Net",
	"Tax 7%",
	"Tax 19%",
	"Gross",
	"Debit Account",
	"Credit Account",
	"Tax Category",
	"Payment Status",
	"Status",
	"File Name",
}

// BuildWorkbook renders the documents as a single-sheet XLSX workbook.
func BuildWorkbook(docs []*domain.DocumentRecord) ([]byte, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheetName); index == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, doc := range docs {
		data := doc.Data
		if data == nil {
			data = &domain.ExtractedData{}
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, data.InternalDocumentNumber)
		write(2, data.DocumentDate)
		write(3, data.VendorName)
		write(4, data.VendorInvoiceNumber)
		if data.NetAmount != nil {
			write(5, *data.NetAmount)
		}
		if data.TaxAmount7 != 0 {
			write(6, data.TaxAmount7)
		}
		if data.TaxAmount19 != 0 {
			write(7, data.TaxAmount19)
		}
		if data.GrossAmount != nil {
			write(8, *data.GrossAmount)
		}
		write(9, data.DebitAccount)
		write(10, data.CreditAccount)
		write(11, data.TaxCategory)
		write(12, data.PaymentStatus)
		write(13, string(doc.Status))
		write(14, doc.FileName)

		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 28)
	_ = f.SetColWidth(sheetName, "D", "D", 20)
	_ = f.SetColWidth(sheetName, "E", "H", 12)
	_ = f.SetColWidth(sheetName, "I", "K", 18)
	_ = f.SetColWidth(sheetName, "N", "N", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
