package ticket

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/lankaconnect/events-backend/internal/event"
)

func renderTicketPDF(ev *event.Event, reg *event.Registration, t *Ticket) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, "Event Ticket")
	pdf.Ln(16)

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, ev.Title)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Starts: %s", ev.StartDate.Format("Mon, 02 Jan 2006 3:04 PM")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Ends:   %s", ev.EndDate.Format("Mon, 02 Jan 2006 3:04 PM")))
	pdf.Ln(8)
	if ev.Location != nil && ev.Location.VenueName != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Venue:  %s, %s, %s", ev.Location.VenueName, ev.Location.City, ev.Location.State))
		pdf.Ln(8)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Ticket Code: %s", t.TicketCode))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Contact: %s", reg.ContactEmail()))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Party size: %d", t.AttendeeCount))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Issued: %s", t.IssuedAt.Format("2006-01-02 15:04:05")))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 10)
	headers := []string{"#", "Name", "Age Group"}
	widths := []float64{15, 100, 40}
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for i, a := range reg.Attendees {
		pdf.CellFormat(widths[0], 6, fmt.Sprint(i+1), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, a.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, string(a.AgeCategory), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Please present this ticket at the entrance.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
