package enums

// TransactionStatus mirrors the status column of partner transactions.
type TransactionStatus string

const (
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusCompleted     TransactionStatus = "completed"
	TransactionStatusCancelled     TransactionStatus = "cancelled"
	TransactionStatusPackRefund    TransactionStatus = "pack_refund"
	TransactionStatusDepositRefund TransactionStatus = "deposit_refund"
)

// RefundTransactionStatuses lists the statuses whose gross amount counts toward period refunds.
func RefundTransactionStatuses() []TransactionStatus {
	return []TransactionStatus{TransactionStatusPackRefund, TransactionStatusDepositRefund}
}

// IsRefund reports whether the status is a refund type.
func (s TransactionStatus) IsRefund() bool {
	return s == TransactionStatusPackRefund || s == TransactionStatusDepositRefund
}
