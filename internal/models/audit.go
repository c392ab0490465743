package models

import "time"

// Survey audit actions.
const (
	AuditActionQuestionCreate = "question_create"
	AuditActionQuestionUpdate = "question_update"
	AuditActionCacheReset     = "report_cache_reset"
	AuditActionExport         = "responses_export"
)

// AuditLog records an administrative change to a survey.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	SurveyID  *string   `db:"survey_id" json:"survey_id,omitempty"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Action    string    `db:"action" json:"action"`
	Metadata  []byte    `db:"metadata" json:"metadata,omitempty"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
