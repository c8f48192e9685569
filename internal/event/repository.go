package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository loads and persists the Event aggregate as a whole: the event
// row plus its owned registrations, sign-up lists, items and commitments.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetByCheckoutSession resolves the event owning the registration that
	// carries the given checkout session id. Used by payment completion.
	GetByCheckoutSession(ctx context.Context, sessionID string) (*Event, *Registration, error)
	GetRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error)
	// Save persists the aggregate and all owned rows in one transaction.
	Save(ctx context.Context, e *Event) error
	// ListExpiredPreliminary returns registrations whose checkout session
	// expired before the cutoff, for the abandonment sweeper.
	ListExpiredPreliminary(ctx context.Context, cutoff time.Time) ([]Registration, error)
	SaveRegistration(ctx context.Context, r *Registration) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var e Event
	err := r.db.WithContext(ctx).
		Preload("Registrations").
		Preload("SignUpLists").
		Preload("SignUpLists.Items").
		Preload("SignUpLists.Items.Commitments").
		First(&e, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) GetByCheckoutSession(ctx context.Context, sessionID string) (*Event, *Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).
		First(&reg, "checkout_session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRegistrationNotFound
		}
		return nil, nil, err
	}

	e, err := r.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, nil, err
	}

	owned := e.FindRegistration(reg.ID)
	if owned == nil {
		return nil, nil, ErrRegistrationNotFound
	}
	return e, owned, nil
}

func (r *repository) GetRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error) {
	var reg Registration
	err := r.db.WithContext(ctx).First(&reg, "id = ?", registrationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return &reg, nil
}

// Save writes the aggregate in a single transaction so a failure between
// the event row and an owned row never leaves a partial write behind.
func (r *repository) Save(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(e).Error; err != nil {
			return err
		}
		return nil
	})
}

func (r *repository) ListExpiredPreliminary(ctx context.Context, cutoff time.Time) ([]Registration, error) {
	var regs []Registration
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND checkout_session_expires_at < ?",
			RegistrationPreliminary, PaymentPending, cutoff).
		Find(&regs).Error
	if err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *repository) SaveRegistration(ctx context.Context, reg *Registration) error {
	return r.db.WithContext(ctx).Save(reg).Error
}
