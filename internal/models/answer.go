package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AnswerKind tags how an answer value is stored.
type AnswerKind string

const (
	AnswerScalar     AnswerKind = "scalar"
	AnswerStructured AnswerKind = "structured"
)

// AnswerValue is either a plain string or a JSON document such as the list
// of choices of a multi-select question. The zero value means unanswered.
type AnswerValue struct {
	kind       AnswerKind
	scalar     string
	structured json.RawMessage
}

// Scalar wraps a plain string answer.
func Scalar(s string) AnswerValue {
	return AnswerValue{kind: AnswerScalar, scalar: s}
}

// Structured wraps a JSON document. The document is compacted so equal
// documents encode identically.
func Structured(raw json.RawMessage) (AnswerValue, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return AnswerValue{}, fmt.Errorf("structured answer: %w", err)
	}
	return AnswerValue{kind: AnswerStructured, structured: buf.Bytes()}, nil
}

// StructuredOf marshals v into a structured answer.
func StructuredOf(v interface{}) (AnswerValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return AnswerValue{}, fmt.Errorf("structured answer: %w", err)
	}
	return Structured(raw)
}

func (v AnswerValue) Kind() AnswerKind { return v.kind }

// IsZero reports whether no value was supplied at all.
func (v AnswerValue) IsZero() bool { return v.kind == "" }

// IsBlank reports whether the value carries no content: absent, whitespace,
// JSON null, or an empty string, array or object.
func (v AnswerValue) IsBlank() bool {
	switch v.kind {
	case AnswerScalar:
		return strings.TrimSpace(v.scalar) == ""
	case AnswerStructured:
		switch string(v.structured) {
		case "", "null", `""`, "[]", "{}":
			return true
		}
		return false
	default:
		return true
	}
}

// String renders the value for comparisons and display. Structured values
// render as compact JSON, except a JSON string which renders unquoted.
func (v AnswerValue) String() string {
	switch v.kind {
	case AnswerScalar:
		return v.scalar
	case AnswerStructured:
		var s string
		if err := json.Unmarshal(v.structured, &s); err == nil {
			return s
		}
		return string(v.structured)
	default:
		return ""
	}
}

// Display renders structured arrays as a comma separated list.
func (v AnswerValue) Display() string {
	if v.kind == AnswerStructured {
		var items []interface{}
		if err := json.Unmarshal(v.structured, &items); err == nil {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, ", ")
		}
	}
	return v.String()
}

// Normalized trims surrounding whitespace from scalar values.
func (v AnswerValue) Normalized() AnswerValue {
	if v.kind == AnswerScalar {
		return Scalar(strings.TrimSpace(v.scalar))
	}
	return v
}

// Equal compares kind and encoded payload.
func (v AnswerValue) Equal(o AnswerValue) bool {
	k1, p1 := v.Encode()
	k2, p2 := o.Encode()
	return k1 == k2 && p1 == p2
}

// Encode returns the storage tag and payload.
func (v AnswerValue) Encode() (AnswerKind, string) {
	switch v.kind {
	case AnswerScalar:
		return AnswerScalar, v.scalar
	case AnswerStructured:
		return AnswerStructured, string(v.structured)
	default:
		return "", ""
	}
}

// DecodeAnswer is the inverse of Encode.
func DecodeAnswer(kind AnswerKind, payload string) (AnswerValue, error) {
	switch kind {
	case AnswerScalar:
		return Scalar(payload), nil
	case AnswerStructured:
		return Structured(json.RawMessage(payload))
	case "":
		return AnswerValue{}, nil
	default:
		return AnswerValue{}, fmt.Errorf("unknown answer kind %q", kind)
	}
}

// MarshalJSON writes scalars as JSON strings and structured values verbatim.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AnswerScalar:
		return json.Marshal(v.scalar)
	case AnswerStructured:
		return v.structured, nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON maps a JSON string to a scalar, null to the zero value and
// anything else to a structured value.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = Scalar(s)
		return nil
	}
	parsed, err := Structured(json.RawMessage(trimmed))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Answer is the persisted answer to one question within a response.
type Answer struct {
	ID         string      `db:"id" json:"id"`
	ResponseID string      `db:"response_id" json:"response_id"`
	QuestionID string      `db:"question_id" json:"question_id"`
	Kind       AnswerKind  `db:"value_kind" json:"-"`
	Payload    string      `db:"value" json:"-"`
	Value      AnswerValue `db:"-" json:"value"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// Decode populates Value from the stored kind and payload.
func (a *Answer) Decode() error {
	v, err := DecodeAnswer(a.Kind, a.Payload)
	if err != nil {
		return fmt.Errorf("answer %s: %w", a.ID, err)
	}
	a.Value = v
	return nil
}

// EvidenceUpload records a link supplied for an evidence question.
type EvidenceUpload struct {
	ID         string    `db:"id" json:"id"`
	ResponseID string    `db:"response_id" json:"response_id"`
	QuestionID string    `db:"question_id" json:"question_id"`
	AnswerID   string    `db:"answer_id" json:"answer_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Link       string    `db:"link" json:"link"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
