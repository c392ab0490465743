package service

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

// driveLinkPattern accepts Google Drive and Docs file, folder, document,
// spreadsheet, form and open?id= links.
var driveLinkPattern = regexp.MustCompile(`(?i)\Ahttps?://(?:drive\.google\.com|docs\.google\.com)/(?:file/d/|drive/folders/|document/d/|spreadsheets/d/|forms/d/|open\?).+`)

// Access check reasons.
const (
	AccessReasonInvalidURL   = "invalid_url"
	AccessReasonForbidden    = "forbidden"
	AccessReasonNotFound     = "not_found"
	AccessReasonUnavailable  = "unavailable"
	AccessReasonNetworkError = "network_error"
)

// ValidateLink checks that link is a non-blank Google Drive link.
func ValidateLink(link string) error {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return appErrors.Clone(appErrors.ErrMissingLink, "")
	}
	if !driveLinkPattern.MatchString(trimmed) {
		return appErrors.Clone(appErrors.ErrInvalidLink, "")
	}
	return nil
}

// EvidenceService probes whether evidence links can be opened.
type EvidenceService struct {
	client  *http.Client
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEvidenceService constructs the service. A nil client gets one with the
// given timeout.
func NewEvidenceService(client *http.Client, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *EvidenceService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceService{client: client, metrics: metrics, logger: logger}
}

// CheckAccess issues a HEAD request, retried as GET when HEAD is not allowed,
// and classifies the result. Invalid links are rejected without a request.
func (s *EvidenceService) CheckAccess(ctx context.Context, link string) models.EvidenceAccess {
	link = strings.TrimSpace(link)
	if err := ValidateLink(link); err != nil {
		s.metrics.RecordEvidenceCheck(AccessReasonInvalidURL)
		return models.EvidenceAccess{OK: false, Reason: AccessReasonInvalidURL}
	}

	status, err := s.probe(ctx, http.MethodHead, link)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = s.probe(ctx, http.MethodGet, link)
	}
	if err != nil {
		s.logger.Debug("evidence access probe failed", zap.String("url", link), zap.Error(err))
		s.metrics.RecordEvidenceCheck(AccessReasonNetworkError)
		return models.EvidenceAccess{OK: false, Accessible: false, Reason: AccessReasonNetworkError}
	}

	result := models.EvidenceAccess{OK: true, Status: status}
	switch {
	case status >= 200 && status < 300:
		result.Accessible = true
	case status == http.StatusForbidden:
		result.Reason = AccessReasonForbidden
	case status == http.StatusNotFound:
		result.Reason = AccessReasonNotFound
	default:
		result.Reason = AccessReasonUnavailable
	}
	label := result.Reason
	if result.Accessible {
		label = "accessible"
	}
	s.metrics.RecordEvidenceCheck(label)
	return result
}

func (s *EvidenceService) probe(ctx context.Context, method, link string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "survey-review-api/evidence-check")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
