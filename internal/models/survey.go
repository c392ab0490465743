package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionScale          QuestionType = "scale"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEvidence       QuestionType = "evidence"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionScale, QuestionShortAnswer, QuestionEvidence:
		return true
	}
	return false
}

// Survey groups categories of questions.
type Survey struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Track       *string   `db:"track" json:"track,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Category is an ordered section of a survey.
type Category struct {
	ID          string  `db:"id" json:"id"`
	SurveyID    string  `db:"survey_id" json:"survey_id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
	Order       int     `db:"category_order" json:"order"`
}

// Question is a single prompt. When DependsOnQuestionID is set the question
// only applies once the referenced question has been answered.
type Question struct {
	ID                  string       `db:"id" json:"id"`
	CategoryID          string       `db:"category_id" json:"category_id"`
	Text                string       `db:"question" json:"question"`
	Order               int          `db:"question_order" json:"order"`
	Type                QuestionType `db:"question_type" json:"type"`
	Options             StringList   `db:"options" json:"options"`
	Required            bool         `db:"required" json:"required"`
	DependsOnQuestionID *string      `db:"depends_on_question_id" json:"depends_on_question_id,omitempty"`
	DependsOnValue      *string      `db:"depends_on_value" json:"depends_on_value,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// OrderedQuestion is a question joined with its category ordering.
type OrderedQuestion struct {
	Question
	CategoryName  string `db:"category_name" json:"category_name"`
	CategoryOrder int    `db:"category_order" json:"category_order"`
}

// StringList stores question options. It reads both JSON arrays and the
// legacy comma separated form and always writes JSON.
type StringList []string

// ParseStringList decodes raw option text.
func ParseStringList(raw string) StringList {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return StringList{}
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return compact(list)
	}
	cleaned := strings.NewReplacer("[", "", "]", "", `"`, "", "“", "", "”", "").Replace(raw)
	return compact(strings.Split(cleaned, ","))
}

func compact(in []string) StringList {
	out := make(StringList, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = StringList{}
	case []byte:
		*l = ParseStringList(string(v))
	case string:
		*l = ParseStringList(v)
	default:
		return fmt.Errorf("unsupported options type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
