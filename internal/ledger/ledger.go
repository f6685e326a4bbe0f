package ledger

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/farrukh-siddiqui/expense-tracker/internal/statement"
)

// Record is one durable ledger entry. Amount is signed: negative for
// money out, positive for money in. Category is always a member of the
// closed enumeration; rows that cannot satisfy that are never written.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Amount    float64    `json:"amount"`
	Text      string     `json:"text"`
	Category  string     `json:"category"`
	Date      civil.Date `json:"date"`
	CreatedAt time.Time  `json:"createdAt"`
}

// RecordRepository is the durable-store boundary for ledger entries.
type RecordRepository interface {
	CreateRecord(ctx context.Context, rec *Record) error
}

// Service converts approved transactions into ledger entries.
type Service struct {
	repo RecordRepository
	log  zerolog.Logger
}

// NewService creates a persistence service over the given repository.
func NewService(repo RecordRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Save persists the batch for userID, best-effort and strictly in list
// order. A row that fails — invalid category, unparseable date, or a
// store error — is logged and skipped; its siblings are still
// attempted. statementYear supplies the year for dates that carry none.
// The returned count is the number of rows actually persisted; the
// caller compares it against the batch length to detect partial failure.
func (s *Service) Save(ctx context.Context, userID string, txs []statement.ParsedTransaction, statementYear int) int {
	saved := 0
	for _, tx := range txs {
		// Review guarantees categorization; re-check anyway so an
		// uncategorized row can never become durable.
		if !statement.ValidCategory(tx.Category) {
			s.log.Warn().
				Str("transaction_id", tx.ID).
				Str("category", tx.Category).
				Msg("skipping transaction without a valid category")
			continue
		}

		date, err := ParseTransactionDate(tx.Date, statementYear)
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("transaction_id", tx.ID).
				Str("date", tx.Date).
				Msg("skipping transaction with unparseable date")
			continue
		}

		rec := &Record{
			UserID:   userID,
			Amount:   SignedAmount(tx),
			Text:     tx.EditableName,
			Category: tx.Category,
			Date:     date,
		}

		if err := s.repo.CreateRecord(ctx, rec); err != nil {
			s.log.Warn().
				Err(err).
				Str("transaction_id", tx.ID).
				Msg("failed to persist transaction, continuing with remaining rows")
			continue
		}

		saved++
		s.log.Debug().
			Str("transaction_id", tx.ID).
			Float64("amount", rec.Amount).
			Str("category", rec.Category).
			Msg("saved transaction")
	}

	s.log.Info().
		Int("saved", saved).
		Int("total", len(txs)).
		Str("user_id", userID).
		Msg("ledger save finished")
	return saved
}

// SignedAmount maps the positive magnitude plus type onto the signed
// ledger amount: debits negate, credits stay positive.
func SignedAmount(tx statement.ParsedTransaction) float64 {
	if tx.Type == statement.TypeDebit {
		return -tx.Amount
	}
	return tx.Amount
}
