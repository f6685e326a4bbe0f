package review

import (
	"errors"
	"fmt"
	"sync"

	"github.com/farrukh-siddiqui/expense-tracker/internal/statement"
)

// State is the review session lifecycle state.
type State string

const (
	// StateDraft is a freshly parsed batch, untouched by the user.
	StateDraft State = "draft"
	// StateEditing means a transaction name edit is in progress.
	StateEditing State = "editing"
	// StateReady means every transaction has a category assigned.
	StateReady State = "ready"
	// StateSaving means the batch has been handed to persistence.
	StateSaving State = "saving"
	// StateSaved is terminal; the batch is durable.
	StateSaved State = "saved"
)

var (
	ErrUnknownTransaction = errors.New("unknown transaction id")
	ErrInvalidCategory    = errors.New("category is not in the allowed list")
	ErrAlreadySaved       = errors.New("session already saved")
	ErrSaveInProgress     = errors.New("save already in progress")
	ErrNotEditing         = errors.New("no edit in progress")
)

// UncategorizedError refuses a save while transactions still lack
// categories; Count tells the user exactly how many need fixing.
type UncategorizedError struct {
	Count int
}

func (e *UncategorizedError) Error() string {
	return fmt.Sprintf("%d transactions are missing categories", e.Count)
}

// Session is the in-memory, single-user state machine over one parsed
// batch. All mutations go through methods holding the session lock;
// OriginalDescription is never touched after construction.
type Session struct {
	ID     string
	UserID string

	// StatementYear resolves transaction dates that carry no year.
	// Set once when the session is created, never changed afterwards.
	StatementYear int

	mu          sync.Mutex
	data        statement.TransactionReviewData
	state       State
	editingID   string
	editingName string
}

// NewSession wraps a parse batch in a review session owned by userID.
func NewSession(id, userID string, data statement.TransactionReviewData) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		data:   data,
		state:  StateDraft,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the batch safe to hand to encoders.
func (s *Session) Snapshot() statement.TransactionReviewData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := statement.TransactionReviewData{
		Transactions: make([]statement.ParsedTransaction, len(s.data.Transactions)),
		AccountInfo:  s.data.AccountInfo,
	}
	copy(out.Transactions, s.data.Transactions)
	return out
}

// BeginEdit enters edit mode for one transaction's editable name,
// seeding the draft from the current value.
func (s *Session) BeginEdit(txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	tx := s.find(txID)
	if tx == nil {
		return ErrUnknownTransaction
	}
	s.editingID = txID
	s.editingName = tx.EditableName
	s.state = StateEditing
	return nil
}

// CommitEdit overwrites the transaction's editable name and leaves edit
// mode. An explicit name may be supplied (the usual API path); an empty
// name commits the current draft value unchanged.
func (s *Session) CommitEdit(txID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	tx := s.find(txID)
	if tx == nil {
		return ErrUnknownTransaction
	}
	if name == "" {
		if s.editingID != txID {
			return ErrNotEditing
		}
		name = s.editingName
	}
	tx.EditableName = name
	s.editingID = ""
	s.editingName = ""
	s.recomputeState()
	return nil
}

// CancelEdit discards the draft value and leaves edit mode.
func (s *Session) CancelEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.editingID = ""
	s.editingName = ""
	s.recomputeState()
	return nil
}

// SetCategory assigns a category from the closed enumeration. It is
// idempotent and changes nothing else on the transaction.
func (s *Session) SetCategory(txID, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return err
	}
	if !statement.ValidCategory(category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	tx := s.find(txID)
	if tx == nil {
		return ErrUnknownTransaction
	}
	tx.Category = category
	s.recomputeState()
	return nil
}

// MissingCategories counts transactions still lacking a category.
func (s *Session) MissingCategories() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missing()
}

// BeginSave moves the session to saving and returns the batch to
// persist. It is refused with an UncategorizedError while any
// transaction lacks a category; no partial save is ever offered.
func (s *Session) BeginSave() ([]statement.ParsedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSaved:
		return nil, ErrAlreadySaved
	case StateSaving:
		return nil, ErrSaveInProgress
	}
	if n := s.missing(); n > 0 {
		return nil, &UncategorizedError{Count: n}
	}
	s.state = StateSaving

	out := make([]statement.ParsedTransaction, len(s.data.Transactions))
	copy(out, s.data.Transactions)
	return out, nil
}

// CompleteSave marks the session terminal after persistence succeeded.
func (s *Session) CompleteSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		s.state = StateSaved
	}
}

// FailSave returns the session to ready after a persistence failure,
// preserving every in-memory edit for a retry.
func (s *Session) FailSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		s.state = StateReady
	}
}

func (s *Session) mutable() error {
	switch s.state {
	case StateSaved:
		return ErrAlreadySaved
	case StateSaving:
		return ErrSaveInProgress
	}
	return nil
}

func (s *Session) find(txID string) *statement.ParsedTransaction {
	for i := range s.data.Transactions {
		if s.data.Transactions[i].ID == txID {
			return &s.data.Transactions[i]
		}
	}
	return nil
}

func (s *Session) missing() int {
	n := 0
	for _, tx := range s.data.Transactions {
		if tx.Category == "" {
			n++
		}
	}
	return n
}

// recomputeState settles the session into ready or editing/draft based
// on categorization progress. Terminal and saving states are sticky.
func (s *Session) recomputeState() {
	if s.state == StateSaving || s.state == StateSaved {
		return
	}
	if s.editingID != "" {
		s.state = StateEditing
		return
	}
	if len(s.data.Transactions) > 0 && s.missing() == 0 {
		s.state = StateReady
		return
	}
	s.state = StateDraft
}
