package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/survey-review-api/internal/models"
)

// DomainReport versions the fingerprint encoding. Changing the canonical
// form requires a new domain so old cache entries are never reused.
const DomainReport = "survey-report/v2"

// Fingerprint digests everything a composite report is rendered from. Equal
// inputs give equal fingerprints regardless of answer, feedback or category
// order; any change to a rendered field gives a different one. Questions are
// hashed in the given order because that order is rendered.
func Fingerprint(subject models.ReportSubject) string {
	answers := append([]models.Answer(nil), subject.Answers...)
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	feedback := append([]models.Feedback(nil), subject.Feedback...)
	sort.SliceStable(feedback, func(i, j int) bool { return feedback[i].ID < feedback[j].ID })
	categories := append([]models.Category(nil), subject.Categories...)
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })

	var c canonical
	c.record('R')
	c.str(subject.Response.ID)
	c.str(string(subject.Response.Status))
	c.optTime(subject.Response.SubmittedAt)
	c.record('S')
	c.str(subject.Student.ID)
	c.str(subject.Student.FullName)
	c.record('V')
	c.str(subject.Survey.ID)
	c.str(subject.Survey.Title)
	for _, cat := range categories {
		c.record('C')
		c.str(cat.ID)
		c.str(cat.Name)
		c.str(strconv.Itoa(cat.Order))
	}
	for _, q := range subject.Questions {
		c.record('Q')
		c.str(q.ID)
		c.str(q.CategoryID)
		c.str(q.CategoryName)
		c.str(q.Text)
		c.time(q.UpdatedAt)
	}
	for _, a := range answers {
		kind, payload := a.Value.Encode()
		if a.Value.IsZero() {
			kind, payload = a.Kind, a.Payload
		}
		c.record('A')
		c.str(a.QuestionID)
		c.str(string(kind))
		c.raw(payload)
		c.time(a.UpdatedAt)
	}
	for _, f := range feedback {
		c.record('F')
		c.str(f.ID)
		c.str(f.CategoryID)
		c.optStr(f.QuestionID)
		c.str(f.AdvisorID)
		c.optInt(f.Score)
		c.optFloat(f.AverageScore)
		c.optStr(f.Comments)
		c.time(f.CreatedAt)
		c.time(f.UpdatedAt)
	}
	return hashWithDomain(DomainReport, c.buf.Bytes())
}

// hashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonical writes length-prefixed fields so no value can be confused with a
// field boundary.
type canonical struct {
	buf bytes.Buffer
}

func (c *canonical) record(tag byte) {
	c.buf.WriteByte('\n')
	c.buf.WriteByte(tag)
}

// str writes NFC normalised text.
func (c *canonical) str(s string) {
	c.raw(norm.NFC.String(s))
}

// raw writes stored bytes unchanged; answer payloads differing only in
// normalisation are different values.
func (c *canonical) raw(s string) {
	c.buf.WriteByte(' ')
	c.buf.WriteString(strconv.Itoa(len(s)))
	c.buf.WriteByte(':')
	c.buf.WriteString(s)
}

func (c *canonical) optStr(s *string) {
	if s == nil {
		c.buf.WriteString(" ~")
		return
	}
	c.str(*s)
}

func (c *canonical) optInt(v *int) {
	if v == nil {
		c.buf.WriteString(" ~")
		return
	}
	c.str(strconv.Itoa(*v))
}

func (c *canonical) optFloat(v *float64) {
	if v == nil {
		c.buf.WriteString(" ~")
		return
	}
	c.str(strconv.FormatFloat(*v, 'g', -1, 64))
}

func (c *canonical) time(t time.Time) {
	c.str(t.UTC().Format(time.RFC3339Nano))
}

func (c *canonical) optTime(t *time.Time) {
	if t == nil {
		c.buf.WriteString(" ~")
		return
	}
	c.time(*t)
}
