// Package store 持久化已完成的面试记录，保留最近的若干条。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// DefaultLimit 默认保留的记录条数。
const DefaultLimit = 20

var (
	ErrNotFound  = errors.New("interview not found")
	ErrInvalidID = errors.New("interview id is required")
)

// Store keeps a capped, newest-first list of saved interviews.
type Store interface {
	Save(ctx context.Context, record interview.SavedInterview) (interview.SavedInterview, error)
	List(ctx context.Context) ([]interview.SavedInterview, error)
	Get(ctx context.Context, id string) (interview.SavedInterview, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// stamp assigns the id and date when the caller left them empty.
func stamp(record interview.SavedInterview, now time.Time) interview.SavedInterview {
	if record.Date.IsZero() {
		record.Date = now.UTC()
	}
	if record.ID == "" {
		record.ID = interview.IDFor(record.Date)
	}
	if record.Questions == nil {
		record.Questions = []interview.QA{}
	}
	return record
}

// prepend puts record first, drops an older entry with the same id and caps the list.
func prepend(list []interview.SavedInterview, record interview.SavedInterview, limit int) []interview.SavedInterview {
	out := make([]interview.SavedInterview, 0, len(list)+1)
	out = append(out, record)
	for _, existing := range list {
		if existing.ID == record.ID {
			continue
		}
		out = append(out, existing)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func find(list []interview.SavedInterview, id string) (int, bool) {
	for i, record := range list {
		if record.ID == id {
			return i, true
		}
	}
	return -1, false
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
