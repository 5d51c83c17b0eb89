package ledger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// AuditEvent is one structured log line describing a balance write.
type AuditEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	OldBalance    string    `json:"old_balance,omitempty"`
	NewBalance    string    `json:"new_balance,omitempty"`
	Processed     int       `json:"processed,omitempty"`
	Folded        int       `json:"folded,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// AuditLogger writes AuditEvents through the standard logger.
type AuditLogger struct {
	logger *log.Logger
}

// NewAuditLogger returns a logger writing to log.Default when l is nil.
func NewAuditLogger(l *log.Logger) *AuditLogger {
	if l == nil {
		l = log.Default()
	}
	return &AuditLogger{logger: l}
}

func (a *AuditLogger) LogRecompute(accountID string, oldBalance, newBalance decimal.Decimal, processed, folded int, changed bool) {
	status := "UNCHANGED"
	if changed {
		status = "UPDATED"
	}
	a.log(AuditEvent{
		EventType:  "RECOMPUTE",
		AccountID:  accountID,
		OldBalance: oldBalance.String(),
		NewBalance: newBalance.String(),
		Processed:  processed,
		Folded:     folded,
		Status:     status,
	})
}

func (a *AuditLogger) LogDelta(accountID, transactionID string, delta decimal.Decimal) {
	a.log(AuditEvent{
		EventType:     "DELTA",
		AccountID:     accountID,
		TransactionID: transactionID,
		Status:        "APPLIED",
		Details:       map[string]string{"delta": delta.String()},
	})
}

func (a *AuditLogger) LogError(accountID, transactionID string, err error) {
	a.log(AuditEvent{
		EventType:     "ERROR",
		AccountID:     accountID,
		TransactionID: transactionID,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, _ := json.Marshal(event)
	a.logger.Printf("AUDIT: %s", string(data))
}
