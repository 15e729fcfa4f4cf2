package common

import (
	"fmt"
	"strings"

	"dndbot/domain/entities"
)

// FormatBalance formats a balance amount with thousand separators
func FormatBalance(balance int64) string {
	sign := ""
	if balance < 0 {
		sign = "-"
		balance = -balance
	}

	str := fmt.Sprintf("%d", balance)
	n := len(str)
	if n <= 3 {
		return sign + str
	}

	var result strings.Builder
	result.WriteString(sign)
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// FormatAmount formats a signed change, always showing the sign
func FormatAmount(amount int64) string {
	if amount > 0 {
		return "+" + FormatBalance(amount)
	}
	return FormatBalance(amount)
}

// FormatTransaction renders one ledger line
func FormatTransaction(tx *entities.Transaction) string {
	line := fmt.Sprintf("`#%d` %s %s → %s", tx.ID, tx.Timestamp.Format("2006-01-02 15:04"), FormatAmount(tx.Amount), FormatBalance(tx.BalanceAfter))
	if tx.UserID != "" {
		line += fmt.Sprintf(" <@%s>", tx.UserID)
	}
	if tx.Reason != "" {
		line += " (" + tx.Reason + ")"
	}
	return line
}
