package reports

import "time"

// Export formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// RegistrationReportRow is one registration as it appears in organizer
// exports. Rows are plain data so callers in any package can build them.
type RegistrationReportRow struct {
	RegistrationID string
	ContactEmail   string
	AttendeeCount  int
	Status         string
	PaymentStatus  string
	TotalAmount    float64
	Currency       string
	TicketCode     string
	RegisteredAt   time.Time
}

// CommitmentReportRow is one sign-up commitment in organizer exports.
type CommitmentReportRow struct {
	ListCategory string
	ItemName     string
	ContactName  string
	ContactEmail string
	Quantity     int
	Notes        string
	CommittedAt  time.Time
}
