package statement

// TransactionType classifies the direction of a transaction. The sign of
// the amount is carried here, never in the numeric value, until the
// ledger stage remaps it to a signed amount.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// Valid reports whether t is one of the two allowed transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeDebit || t == TypeCredit
}

// ParsedTransaction is one transaction extracted from a statement.
// IDs are stable only within a single parse batch ("transaction-1",
// "transaction-2", ...). OriginalDescription is immutable after parsing;
// EditableName starts as a copy of it and is what the user edits.
type ParsedTransaction struct {
	ID                  string          `json:"id"`
	Date                string          `json:"date"`
	OriginalDescription string          `json:"originalDescription"`
	EditableName        string          `json:"editableName"`
	Amount              float64         `json:"amount"` // always >= 0
	Type                TransactionType `json:"type"`
	Category            string          `json:"category,omitempty"`
	Balance             *float64        `json:"balance,omitempty"`
}

// AccountInfo is the best-effort statement header extraction. Fields the
// oracle could not determine are "Unknown" (strings) or 0 (numbers),
// never absent. It is shown on the review screen and not persisted.
type AccountInfo struct {
	AccountName     string  `json:"accountName"`
	AccountNumber   string  `json:"accountNumber"`
	StatementPeriod string  `json:"statementPeriod"`
	OpeningBalance  float64 `json:"openingBalance"`
	ClosingBalance  float64 `json:"closingBalance"`
	TotalIn         float64 `json:"totalIn"`
	TotalOut        float64 `json:"totalOut"`
}

// UnknownAccountInfo returns the sentinel account info used when header
// extraction fails or is skipped.
func UnknownAccountInfo() AccountInfo {
	return AccountInfo{
		AccountName:     "Unknown",
		AccountNumber:   "Unknown",
		StatementPeriod: "Unknown",
	}
}

// TransactionReviewData is the unit handed from the parser to the review
// stage: one parse batch plus its account header.
type TransactionReviewData struct {
	Transactions []ParsedTransaction `json:"transactions"`
	AccountInfo  AccountInfo         `json:"accountInfo"`
}

// EmptyReviewData is the well-formed empty result the parser returns on
// any internal failure.
func EmptyReviewData() TransactionReviewData {
	return TransactionReviewData{
		Transactions: []ParsedTransaction{},
		AccountInfo:  UnknownAccountInfo(),
	}
}
