package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

type fakeEvidenceChecker struct {
	link string
}

func (f *fakeEvidenceChecker) CheckAccess(_ context.Context, link string) models.EvidenceAccess {
	f.link = link
	return models.EvidenceAccess{OK: true, Accessible: false, Status: http.StatusForbidden, Reason: "forbidden"}
}

func TestEvidenceHandlerRequiresURL(t *testing.T) {
	checker := &fakeEvidenceChecker{}
	h := NewEvidenceHandler(checker)

	c, rec := newTestContext(http.MethodGet, "/evidence/check-access?url=%20", nil, nil)
	h.CheckAccess(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, checker.link)
}

func TestEvidenceHandlerReportsAccess(t *testing.T) {
	checker := &fakeEvidenceChecker{}
	h := NewEvidenceHandler(checker)

	c, rec := newTestContext(http.MethodGet, "/evidence/check-access?url=https://drive.google.com/file/d/abc/view", nil, nil)
	h.CheckAccess(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", checker.link)
	var access models.EvidenceAccess
	require.NoError(t, json.Unmarshal(decodeEnvelope(rec).Data, &access))
	assert.False(t, access.Accessible)
	assert.Equal(t, "forbidden", access.Reason)
}

type fakeExportService struct {
	format string
	err    error
}

func (f *fakeExportService) ExportResponses(_ context.Context, surveyID, format string) (*service.ExportFile, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "survey-" + surveyID + "-responses.csv", ContentType: "text/csv", Body: []byte("Student\n"), Rows: 2}, nil
}

func TestExportHandlerDefaultsToCSV(t *testing.T) {
	exports := &fakeExportService{}
	h := NewExportHandler(exports)

	c, rec := newTestContext(http.MethodGet, "/surveys/survey-1/responses/export", nil, advisorClaims("adv-1"))
	c.Params = gin.Params{{Key: "id", Value: "survey-1"}}
	h.Responses(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exports.format)
	assert.Equal(t, `attachment; filename="survey-survey-1-responses.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "2", rec.Header().Get(headerExportRows))
}

func TestExportHandlerUnsupportedFormat(t *testing.T) {
	h := NewExportHandler(&fakeExportService{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")})

	c, rec := newTestContext(http.MethodGet, "/surveys/survey-1/responses/export?format=xlsx", nil, advisorClaims("adv-1"))
	h.Responses(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandlerHealthIncludesSnapshot(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordCacheOperation(true, 0)
	h := NewMetricsHandler(metrics)

	c, rec := newTestContext(http.MethodGet, "/health", nil, nil)
	h.Health(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  string                  `json:"status"`
		Metrics service.MetricsSnapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, uint64(1), body.Metrics.CacheHits)
}

func TestMetricsHandlerPrometheusWithoutService(t *testing.T) {
	h := NewMetricsHandler(nil)

	c, rec := newTestContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeProfiles map[string]*models.User

func (f fakeProfiles) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(fakeProfiles{"stu-1": {ID: "stu-1", FullName: "Ana Pratiwi", Role: models.RoleStudent}})

	c, rec := newTestContext(http.MethodGet, "/auth/me", nil, studentClaims("stu-1"))
	h.Me(c)
	require.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/auth/me", nil, studentClaims("ghost"))
	h.Me(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

