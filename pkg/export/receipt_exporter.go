package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ReceiptLine is one printed row on a payment receipt.
type ReceiptLine struct {
	Description string
	Amount      float64
}

// ReceiptData carries everything printed on a payment receipt.
type ReceiptData struct {
	SchoolName    string
	SchoolAddress string
	InvoiceNumber string
	PaymentDate   string
	StudentName   string
	StudentNumber string
	GradeLevel    int
	PaymentMethod string
	ReceivedBy    string
	Lines         []ReceiptLine
	Total         float64
	Reverted      bool
}

// ReceiptExporter renders payment receipts as PDF documents.
type ReceiptExporter struct{}

// NewReceiptExporter constructs a receipt exporter.
func NewReceiptExporter() *ReceiptExporter {
	return &ReceiptExporter{}
}

// Render produces the receipt PDF bytes.
func (e *ReceiptExporter) Render(data ReceiptData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, data.SchoolName, "", 1, "C", false, 0, "")
	if data.SchoolAddress != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, data.SchoolAddress, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	title := "OFFICIAL RECEIPT"
	if data.Reverted {
		title = "OFFICIAL RECEIPT (REVERTED)"
	}
	pdf.CellFormat(0, 7, title, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 9)
	left := [][2]string{
		{"Invoice", data.InvoiceNumber},
		{"Date", data.PaymentDate},
		{"Student", fmt.Sprintf("%s (%s)", data.StudentName, data.StudentNumber)},
		{"Grade", fmt.Sprintf("%d", data.GradeLevel)},
		{"Method", data.PaymentMethod},
	}
	for _, pair := range left {
		pdf.CellFormat(25, 5, pair[0], "", 0, "", false, 0, "")
		pdf.CellFormat(0, 5, ": "+pair[1], "", 1, "", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(95, 6, "Description", "1", 0, "", false, 0, "")
	pdf.CellFormat(30, 6, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, line := range data.Lines {
		pdf.CellFormat(95, 6, line.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", line.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(95, 6, "TOTAL", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", data.Total), "1", 1, "R", false, 0, "")

	if data.ReceivedBy != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, "Received by: "+data.ReceivedBy, "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
