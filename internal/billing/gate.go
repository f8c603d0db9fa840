// Package billing meters tenant credits and opens checkout sessions.
package billing

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Flat credit cost per metered scan type.
const (
	CostGeoScan        = 5
	CostRegistryScan   = 10
	CostCompetitorScan = 15
	CostIntentScan     = 15
)

// ErrInsufficientCredits is the hard-stop condition for a metered operation.
// Callers surface it as a blocking alert instead of retrying.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger performs the actual debit in the transactional store. A false
// return means the balance did not cover the amount and nothing was debited.
type Ledger interface {
	DebitCredits(ctx context.Context, tenantID string, amount int, source, description string) (bool, error)
}

// Gate is the pre-flight check-and-debit for metered vendor calls. There is
// no reservation or rollback: a failed debit simply aborts the operation
// before any further work happens for it.
type Gate struct {
	ledger Ledger
}

// NewGate creates a credit gate over the given ledger.
func NewGate(ledger Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// UseCredits debits amount from the tenant before a metered operation.
// Returns ErrInsufficientCredits when the balance is too low.
func (g *Gate) UseCredits(ctx context.Context, tenantID string, amount int, source, description string) error {
	if amount <= 0 {
		return eris.Errorf("billing: invalid debit amount %d", amount)
	}

	ok, err := g.ledger.DebitCredits(ctx, tenantID, amount, source, description)
	if err != nil {
		return eris.Wrap(err, "billing: debit credits")
	}
	if !ok {
		zap.L().Info("credit debit refused",
			zap.String("tenant", tenantID),
			zap.Int("amount", amount),
			zap.String("source", source),
		)
		return eris.Wrapf(ErrInsufficientCredits, "billing: %s needs %d credits", source, amount)
	}
	return nil
}
