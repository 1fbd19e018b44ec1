package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/internal/models"
	appErrors "github.com/emsd/school-billing-api/pkg/errors"
	"github.com/emsd/school-billing-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type receiptRenderer interface {
	Render(data export.ReceiptData) ([]byte, error)
}

// ExportService renders payment receipts and assessment sheets.
type ExportService struct {
	payments    *PaymentService
	assessments *AssessmentService
	csv         csvRenderer
	pdf         pdfRenderer
	receipt     receiptRenderer
	logger      *zap.Logger

	schoolName    string
	schoolAddress string
}

// NewExportService constructs an ExportService.
func NewExportService(payments *PaymentService, assessments *AssessmentService, schoolName, schoolAddress string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		payments:      payments,
		assessments:   assessments,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		receipt:       export.NewReceiptExporter(),
		logger:        logger,
		schoolName:    schoolName,
		schoolAddress: schoolAddress,
	}
}

// PaymentReceipt renders the printable receipt for one payment.
func (s *ExportService) PaymentReceipt(ctx context.Context, paymentID int64) ([]byte, string, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, "", err
	}

	lines := make([]export.ReceiptLine, 0, len(payment.Items))
	for _, item := range payment.Items {
		lines = append(lines, export.ReceiptLine{Description: item.Description, Amount: item.Amount})
	}

	data := export.ReceiptData{
		SchoolName:    s.schoolName,
		SchoolAddress: s.schoolAddress,
		InvoiceNumber: payment.InvoiceNumber,
		PaymentDate:   payment.PaymentDate.Format("2006-01-02"),
		StudentName:   strings.TrimSpace(payment.FirstName + " " + payment.LastName),
		StudentNumber: payment.StudentNumber,
		PaymentMethod: string(payment.PaymentMethod),
		ReceivedBy:    payment.CreatedByUsername,
		Lines:         lines,
		Total:         payment.TotalAmount,
		Reverted:      payment.Reverted,
	}
	payload, err := s.receipt.Render(data)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	filename := fmt.Sprintf("receipt-%s.pdf", payment.InvoiceNumber)
	return payload, filename, nil
}

// AssessmentSheet renders one batch as CSV or PDF for distribution.
func (s *ExportService) AssessmentSheet(ctx context.Context, batchID int64, format string) ([]byte, string, error) {
	batch, err := s.assessments.GetBatch(ctx, batchID)
	if err != nil {
		return nil, "", err
	}

	dataset := batchDataset(batch)
	switch strings.ToLower(format) {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("assessment-batch-%d.csv", batch.ID), nil
	case "", "pdf":
		payload, err := s.pdf.Render(dataset, batch.BatchName)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, fmt.Sprintf("assessment-batch-%d.pdf", batch.ID), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func batchDataset(batch *models.BatchDetail) export.Dataset {
	headers := []string{"Student No", "Name", "Grade", "Total Charges", "Total Paid", "Current Due"}
	rows := make([]map[string]string, 0, len(batch.Assessments))
	for _, a := range batch.Assessments {
		name := a.LastName + ", " + a.FirstName
		if a.MiddleName != nil && *a.MiddleName != "" {
			name += " " + *a.MiddleName
		}
		rows = append(rows, map[string]string{
			"Student No":    a.StudentNumber,
			"Name":          name,
			"Grade":         fmt.Sprintf("%d", a.GradeLevel),
			"Total Charges": fmt.Sprintf("%.2f", a.TotalCharges),
			"Total Paid":    fmt.Sprintf("%.2f", a.TotalPaid),
			"Current Due":   fmt.Sprintf("%.2f", a.CurrentDue),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
