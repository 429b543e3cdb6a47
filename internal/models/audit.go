package models

import "time"

// AuditAction constants represent ledger actions to be logged.
const (
	AuditActionEnroll           = "ENROLL"
	AuditActionAdjustPayment    = "ADJUST_PAYMENT"
	AuditActionCancel           = "CANCEL_REGISTRATION"
	AuditActionDelete           = "DELETE_REGISTRATION"
	AuditActionRecordPayment    = "RECORD_PAYMENT"
	AuditActionRecordExpense    = "RECORD_EXPENSE"
	AuditActionVoidPayment      = "VOID_PAYMENT"
	AuditActionAutoBill         = "AUTO_BILL"
	AuditActionProvisionAccount = "PROVISION_ACCOUNT"
	AuditActionIssueCertificate = "ISSUE_CERTIFICATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	BranchID   *string   `db:"branch_id" json:"branch_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
