package entities

import "time"

// Wallet is a user's balance within one guild
type Wallet struct {
	ID        int64
	GuildID   string
	UserID    string
	Balance   int64
	Version   int64
	Pending   *PendingChange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PendingChange describes the last balance change written to a wallet whose
// ledger entry may not have been appended yet. It carries everything needed to
// rebuild that entry.
type PendingChange struct {
	OperationID   string
	TransactionID int64
	Timestamp     time.Time
	Amount        int64
	BalanceAfter  int64
	Actor         string
	Reason        string
}

// IsNew reports whether the wallet has never been written
func (w *Wallet) IsNew() bool {
	return w.Version == 0
}

// LedgerEntry rebuilds the transaction a pending change stands for
func (w *Wallet) LedgerEntry() *Transaction {
	if w.Pending == nil {
		return nil
	}
	return &Transaction{
		ID:           w.Pending.TransactionID,
		GuildID:      w.GuildID,
		UserID:       w.UserID,
		Timestamp:    w.Pending.Timestamp,
		Amount:       w.Pending.Amount,
		BalanceAfter: w.Pending.BalanceAfter,
		Actor:        w.Pending.Actor,
		Reason:       w.Pending.Reason,
		OperationID:  w.Pending.OperationID,
	}
}
