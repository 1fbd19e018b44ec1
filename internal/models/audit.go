package models

import "time"

// Audit actions recorded against money-moving and account operations.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionUserCreate     = "USER_CREATE"
	AuditActionPasswordChange = "PASSWORD_CHANGE"
	AuditActionPaymentCreate  = "PAYMENT_CREATE"
	AuditActionPaymentRevert  = "PAYMENT_REVERT"
	AuditActionPaymentDelete  = "PAYMENT_DELETE"
	AuditActionGradeUpgrade   = "GRADE_UPGRADE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *int64    `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
