package notify

import (
	"context"
	"sync"

	"github.com/warp/stage5-reports/report"
)

// =============================================================================
// MEMORY NOTIFIER - Records emails instead of sending them (dry runs)
// =============================================================================

// Memory keeps every email it is given. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	emails []report.Email
}

// NewMemory returns an empty recording notifier.
func NewMemory() *Memory {
	return &Memory{}
}

// Send records email. Like the real client, it rejects an email with no
// recipients.
func (m *Memory) Send(_ context.Context, email report.Email) error {
	if len(email.Recipients) == 0 {
		return report.MissingSetting("RECIPIENT_EMAILS")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

// Emails returns a copy of everything recorded, oldest first.
func (m *Memory) Emails() []report.Email {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]report.Email, len(m.emails))
	copy(out, m.emails)
	return out
}

// Last returns the most recent email.
func (m *Memory) Last() (report.Email, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.emails) == 0 {
		return report.Email{}, false
	}
	return m.emails[len(m.emails)-1], true
}
