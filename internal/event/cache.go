package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const summaryCacheTTL = 60 * time.Second

// EventSummary is the cached read model served on listing paths. It is
// rebuilt from the aggregate after every mutation, so a stale entry only
// survives for the cache TTL.
type EventSummary struct {
	ID                   uuid.UUID      `json:"id"`
	Title                string         `json:"title"`
	Status               Status         `json:"status"`
	StartDate            time.Time      `json:"start_date"`
	EndDate              time.Time      `json:"end_date"`
	Capacity             int            `json:"capacity"`
	CurrentRegistrations int            `json:"current_registrations"`
	RemainingCapacity    int            `json:"remaining_capacity"`
	Free                 bool           `json:"free"`
	TicketPrice          *Money         `json:"ticket_price,omitempty"`
	Location             *EventLocation `json:"location,omitempty"`
}

func newEventSummary(e *Event) *EventSummary {
	current := e.CurrentRegistrations()
	return &EventSummary{
		ID:                   e.ID,
		Title:                e.Title,
		Status:               e.Status,
		StartDate:            e.StartDate,
		EndDate:              e.EndDate,
		Capacity:             e.Capacity,
		CurrentRegistrations: current,
		RemainingCapacity:    e.Capacity - current,
		Free:                 e.IsFree(),
		TicketPrice:          e.TicketPrice,
		Location:             e.Location,
	}
}

// SummaryCache stores event summaries in Redis with a short TTL.
type SummaryCache struct {
	client *redis.Client
}

func NewSummaryCache(client *redis.Client) *SummaryCache {
	return &SummaryCache{client: client}
}

func summaryKey(eventID uuid.UUID) string {
	return "event:summary:" + eventID.String()
}

// Get returns the cached summary, or (nil, nil) on a cache miss.
func (c *SummaryCache) Get(ctx context.Context, eventID uuid.UUID) (*EventSummary, error) {
	raw, err := c.client.Get(ctx, summaryKey(eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var summary EventSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *SummaryCache) Set(ctx context.Context, summary *EventSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(summary.ID), raw, summaryCacheTTL).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	return c.client.Del(ctx, summaryKey(eventID)).Err()
}
