package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/internal/service"
	"github.com/noah-isme/survey-review-api/pkg/config"
)

type fakeReports struct {
	deleted int
	subject *models.ReportSubject
	err     error
}

func (f *fakeReports) ResetCache(context.Context) (int, error) { return f.deleted, f.err }

func (f *fakeReports) LoadSubject(context.Context, string) (*models.ReportSubject, error) {
	return f.subject, f.err
}

type fakeRunner struct {
	ref  time.Time
	sent int
	err  error
}

func (f *fakeRunner) RunDueDateChecks(_ context.Context, ref time.Time) (int, error) {
	f.ref = ref
	return f.sent, f.err
}

func testConfig() (*config.Config, error) {
	return &config.Config{JWT: config.JWTConfig{Secret: "cli-secret", Issuer: "survey-review"}}, nil
}

func execute(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	closed := false
	opts := &RootOptions{
		LoadConfig: testConfig,
		Open: func(context.Context, *config.Config) (*Deps, func() error, error) {
			return deps, func() error { closed = true; return nil }, nil
		},
	}
	cmd := NewRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if deps != nil && err == nil {
		assert.True(t, closed, "stores should be released")
	}
	return out.String(), err
}

func TestResetCacheCommand(t *testing.T) {
	out, err := execute(t, &Deps{Reports: &fakeReports{deleted: 4}}, "reports", "reset-cache")
	require.NoError(t, err)
	assert.Equal(t, "deleted 4 cached report(s)\n", out)
}

func TestResetCacheCommandJSON(t *testing.T) {
	out, err := execute(t, &Deps{Reports: &fakeReports{deleted: 2}}, "--format", "json", "reports", "reset-cache")
	require.NoError(t, err)
	assert.JSONEq(t, `{"deleted":2}`, out)
}

func TestFingerprintCommand(t *testing.T) {
	subject := &models.ReportSubject{
		Response: models.SurveyResponse{ID: "resp-1", StudentID: "stu-1"},
		Student:  models.User{ID: "stu-1"},
	}
	out, err := execute(t, &Deps{Reports: &fakeReports{subject: subject}}, "--format", "json", "reports", "fingerprint", "resp-1")
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	fp := service.Fingerprint(*subject)
	assert.Equal(t, fp, payload["fingerprint"])
	assert.Equal(t, service.ReportCacheKey("resp-1", fp), payload["cache_key"])
}

func TestNotifyRunUsesReferenceTime(t *testing.T) {
	runner := &fakeRunner{sent: 3}
	out, err := execute(t, &Deps{Notifications: runner}, "notify", "run", "--at", "2026-03-02T09:00:00+07:00")
	require.NoError(t, err)
	assert.Equal(t, "dispatched 3 event(s)\n", out)
	assert.True(t, runner.ref.Equal(time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)))
}

func TestNotifyRunReportsPartialFailure(t *testing.T) {
	runner := &fakeRunner{sent: 1, err: errors.New("dispatch failed")}
	out, err := execute(t, &Deps{Notifications: runner}, "notify", "run")
	assert.EqualError(t, err, "dispatch failed")
	assert.Contains(t, out, "dispatched 1 event(s)")
}

func TestNotifyRunRejectsBadTime(t *testing.T) {
	_, err := execute(t, &Deps{Notifications: &fakeRunner{}}, "notify", "run", "--at", "yesterday")
	assert.ErrorContains(t, err, "invalid --at value")
}

func TestTokenIssueRoundTrip(t *testing.T) {
	out, err := execute(t, nil, "--format", "json", "token", "issue", "adv-1", "--role", "advisor")
	require.NoError(t, err)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))

	claims, err := service.NewTokenService(service.TokenConfig{Secret: "cli-secret", Issuer: "survey-review"}).ValidateToken(payload.Token)
	require.NoError(t, err)
	assert.Equal(t, "adv-1", claims.UserID)
	assert.Equal(t, models.RoleAdvisor, claims.Role)
}

func TestTokenIssueRejectsUnknownRole(t *testing.T) {
	_, err := execute(t, nil, "token", "issue", "x", "--role", "janitor")
	assert.ErrorContains(t, err, "invalid role")
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, &Deps{Reports: &fakeReports{}}, "--format", "yaml", "reports", "reset-cache")
	assert.ErrorContains(t, err, "invalid format")
}
