package auditlog

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type Service interface {
	LogAction(ctx context.Context, userID *uuid.UUID, eventID *uuid.UUID, action string, details map[string]interface{}, status string) error
	GetAuditLogs(ctx context.Context, filter Filter) ([]AuditLog, int64, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// LogAction creates a new audit log entry. Marshalling problems degrade to
// an empty details object rather than losing the entry.
func (s *service) LogAction(ctx context.Context, userID *uuid.UUID, eventID *uuid.UUID, action string, details map[string]interface{}, status string) error {
	if details == nil {
		details = make(map[string]interface{})
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return s.repo.Create(ctx, &AuditLog{
		UserID:  userID,
		EventID: eventID,
		Action:  action,
		Details: detailsJSON,
		Status:  status,
	})
}

func (s *service) GetAuditLogs(ctx context.Context, filter Filter) ([]AuditLog, int64, error) {
	return s.repo.GetByFilter(ctx, filter)
}
