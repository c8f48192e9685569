package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Exporter renders organizer-facing exports of an event's registrations
// and sign-up commitments.
type Exporter interface {
	ExportRegistrations(format, eventTitle string, rows []RegistrationReportRow) ([]byte, string, string, error)
	ExportCommitments(format, eventTitle string, rows []CommitmentReportRow) ([]byte, string, string, error)
}

type exporter struct{}

func NewExporter() Exporter {
	return &exporter{}
}

func (e *exporter) ExportRegistrations(format, eventTitle string, rows []RegistrationReportRow) ([]byte, string, string, error) {
	timestamp := time.Now().Format("20060102_150405")
	switch format {
	case FormatCSV:
		data, err := e.exportRegistrationsCSV(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("registrations_%s.csv", timestamp), "text/csv", nil
	case FormatExcel:
		data, err := e.exportRegistrationsExcel(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("registrations_%s.xlsx", timestamp), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	case FormatPDF:
		data, err := e.exportRegistrationsPDF(eventTitle, rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("registrations_%s.pdf", timestamp), "application/pdf", nil
	default:
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (e *exporter) exportRegistrationsCSV(rows []RegistrationReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"registration_id", "contact_email", "attendee_count", "status", "payment_status", "total_amount", "currency", "ticket_code", "registered_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.RegistrationID,
			r.ContactEmail,
			strconv.Itoa(r.AttendeeCount),
			r.Status,
			r.PaymentStatus,
			fmt.Sprintf("%.2f", r.TotalAmount),
			r.Currency,
			r.TicketCode,
			r.RegisteredAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportRegistrationsExcel(rows []RegistrationReportRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Registrations"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"registration_id", "contact_email", "attendee_count", "status", "payment_status", "total_amount", "currency", "ticket_code", "registered_at"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for rIdx, r := range rows {
		row := rIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.RegistrationID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.ContactEmail)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.AttendeeCount)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Status)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.PaymentStatus)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.TotalAmount)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.Currency)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), r.TicketCode)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), r.RegisteredAt.Format("2006-01-02 15:04:05"))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportRegistrationsPDF(eventTitle string, rows []RegistrationReportRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, fmt.Sprintf("Registrations Report - %s", eventTitle))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 9)
	headers := []string{"Registration", "Email", "Count", "Status", "Payment", "Amount", "Ticket", "Registered"}
	widths := []float64{55, 55, 15, 25, 25, 22, 35, 38}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		pdf.CellFormat(widths[0], 6, r.RegistrationID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.ContactEmail, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, strconv.Itoa(r.AttendeeCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, r.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, r.PaymentStatus, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 6, fmt.Sprintf("%.2f %s", r.TotalAmount, r.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[6], 6, r.TicketCode, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[7], 6, r.RegisteredAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) ExportCommitments(format, eventTitle string, rows []CommitmentReportRow) ([]byte, string, string, error) {
	timestamp := time.Now().Format("20060102_150405")
	switch format {
	case FormatCSV:
		data, err := e.exportCommitmentsCSV(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("sign_up_commitments_%s.csv", timestamp), "text/csv", nil
	case FormatExcel:
		data, err := e.exportCommitmentsExcel(rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("sign_up_commitments_%s.xlsx", timestamp), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	case FormatPDF:
		data, err := e.exportCommitmentsPDF(eventTitle, rows)
		if err != nil {
			return nil, "", "", err
		}
		return data, fmt.Sprintf("sign_up_commitments_%s.pdf", timestamp), "application/pdf", nil
	default:
		return nil, "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func (e *exporter) exportCommitmentsCSV(rows []CommitmentReportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"list_category", "item_name", "contact_name", "contact_email", "quantity", "notes", "committed_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			r.ListCategory,
			r.ItemName,
			r.ContactName,
			r.ContactEmail,
			strconv.Itoa(r.Quantity),
			r.Notes,
			r.CommittedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportCommitmentsExcel(rows []CommitmentReportRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Sign-Up Commitments"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headers := []string{"list_category", "item_name", "contact_name", "contact_email", "quantity", "notes", "committed_at"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for rIdx, r := range rows {
		row := rIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.ListCategory)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.ItemName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.ContactName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.ContactEmail)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.Notes)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.CommittedAt.Format("2006-01-02 15:04:05"))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportCommitmentsPDF(eventTitle string, rows []CommitmentReportRow) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, fmt.Sprintf("Sign-Up Commitments - %s", eventTitle))
	pdf.Ln(14)

	pdf.SetFont("Arial", "B", 9)
	headers := []string{"Category", "Item", "Name", "Email", "Qty", "Notes", "Committed"}
	widths := []float64{35, 50, 40, 55, 12, 50, 35}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		pdf.CellFormat(widths[0], 6, r.ListCategory, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, r.ItemName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, r.ContactName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, r.ContactEmail, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[4], 6, strconv.Itoa(r.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[5], 6, r.Notes, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[6], 6, r.CommittedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
