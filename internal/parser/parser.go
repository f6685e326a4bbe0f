package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/farrukh-siddiqui/expense-tracker/internal/statement"
)

// Parser turns extracted statement text into a reviewable transaction
// batch using a completion oracle. It is total: Parse never fails past
// this boundary, it falls back to a well-formed empty result instead.
type Parser struct {
	oracle Oracle
	log    zerolog.Logger
}

// New creates a parser around the given oracle.
func New(oracle Oracle, log zerolog.Logger) *Parser {
	return &Parser{oracle: oracle, log: log}
}

// Parse sends the extracted text to the oracle once and coerces the
// completion into a typed TransactionReviewData. Any oracle failure,
// JSON decode failure, or shape mismatch yields the empty fallback; a
// malformed oracle response is never partially trusted. There is no
// retry: the caller treats an empty batch as a recoverable state.
func (p *Parser) Parse(ctx context.Context, extractedText string) statement.TransactionReviewData {
	raw, err := p.oracle.Complete(ctx, systemInstruction, buildPrompt(extractedText))
	if err != nil {
		p.log.Warn().Err(err).Msg("oracle completion failed, returning empty batch")
		return statement.EmptyReviewData()
	}

	data, err := decodeReviewPayload(stripCodeFences(raw))
	if err != nil {
		p.log.Warn().Err(err).Msg("oracle response rejected, returning empty batch")
		return statement.EmptyReviewData()
	}

	p.log.Info().Int("transactions", len(data.Transactions)).Msg("parsed bank statement")
	return data
}

// stripCodeFences removes optional Markdown code-fence wrappers
// (```json ... ``` or ``` ... ```) that the oracle may emit despite
// being told not to.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json).
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// decodeReviewPayload structurally validates the cleaned completion text
// against the expected shape. The transactions array and its fields are
// required and strictly typed; account info fields fall back to the
// "Unknown"/0 sentinels when absent, but a present-and-mistyped field
// rejects the whole payload.
func decodeReviewPayload(clean string) (statement.TransactionReviewData, error) {
	var root map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &root); err != nil {
		return statement.TransactionReviewData{}, fmt.Errorf("decode completion: %w", err)
	}

	txAny, ok := root["transactions"]
	if !ok {
		return statement.TransactionReviewData{}, fmt.Errorf("missing 'transactions' key")
	}
	txSlice, ok := txAny.([]interface{})
	if !ok {
		return statement.TransactionReviewData{}, fmt.Errorf("'transactions' is %T, want array", txAny)
	}

	transactions := make([]statement.ParsedTransaction, 0, len(txSlice))
	for i, item := range txSlice {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d is %T, want object", i, item)
		}

		date, err := stringField(obj, "date")
		if err != nil {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		desc, err := stringField(obj, "description")
		if err != nil {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		amount, err := floatField(obj, "amount")
		if err != nil {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		typeStr, err := stringField(obj, "type")
		if err != nil {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		txType := statement.TransactionType(typeStr)
		if !txType.Valid() {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: type %q is not debit or credit", i, typeStr)
		}
		balance, err := optionalFloatField(obj, "balance")
		if err != nil {
			return statement.TransactionReviewData{}, fmt.Errorf("transaction %d: %w", i, err)
		}

		// Batch-local sequential identifier; the sign lives in the type.
		transactions = append(transactions, statement.ParsedTransaction{
			ID:                  fmt.Sprintf("transaction-%d", i+1),
			Date:                date,
			OriginalDescription: desc,
			EditableName:        desc,
			Amount:              math.Abs(amount),
			Type:                txType,
			Balance:             balance,
		})
	}

	info, err := decodeAccountInfo(root["accountInfo"])
	if err != nil {
		return statement.TransactionReviewData{}, err
	}

	return statement.TransactionReviewData{
		Transactions: transactions,
		AccountInfo:  info,
	}, nil
}

func decodeAccountInfo(v interface{}) (statement.AccountInfo, error) {
	info := statement.UnknownAccountInfo()
	if v == nil {
		return info, nil
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return statement.AccountInfo{}, fmt.Errorf("'accountInfo' is %T, want object", v)
	}

	var err error
	if info.AccountName, err = stringFieldOr(obj, "accountName", info.AccountName); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.AccountNumber, err = stringFieldOr(obj, "accountNumber", info.AccountNumber); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.StatementPeriod, err = stringFieldOr(obj, "statementPeriod", info.StatementPeriod); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.OpeningBalance, err = floatFieldOr(obj, "openingBalance", 0); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.ClosingBalance, err = floatFieldOr(obj, "closingBalance", 0); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.TotalIn, err = floatFieldOr(obj, "totalIn", 0); err != nil {
		return statement.AccountInfo{}, err
	}
	if info.TotalOut, err = floatFieldOr(obj, "totalOut", 0); err != nil {
		return statement.AccountInfo{}, err
	}
	return info, nil
}

func stringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return s, nil
}

func stringFieldOr(m map[string]interface{}, key, fallback string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return s, nil
}

func floatField(m map[string]interface{}, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing required field %q", key)
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	return f, nil
}

func floatFieldOr(m map[string]interface{}, key string, fallback float64) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
	return f, nil
}

func optionalFloatField(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
	return &f, nil
}
