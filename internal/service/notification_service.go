package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/survey-review-api/internal/models"
	"github.com/noah-isme/survey-review-api/pkg/jobs"
)

// TypeDueDateEvent is the task type carrying a models.DueDateEvent.
const TypeDueDateEvent = "survey:assignment_due"

type dueAssignmentLister interface {
	ListOpenDueBefore(ctx context.Context, until time.Time) ([]models.SurveyAssignment, error)
}

// Dispatcher hands a due-date event to whatever delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.DueDateEvent) error
}

// NotificationService scans open assignments and emits due-date events.
type NotificationService struct {
	assignments dueAssignmentLister
	dispatcher  Dispatcher
	window      time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(assignments dueAssignmentLister, dispatcher Dispatcher, window time.Duration, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if window <= 0 {
		window = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{assignments: assignments, dispatcher: dispatcher, window: window, metrics: metrics, logger: logger}
}

// RunDueDateChecks dispatches due_soon for assignments due within the window
// after ref and past_due for assignments already overdue. It returns the
// number of events dispatched.
func (s *NotificationService) RunDueDateChecks(ctx context.Context, ref time.Time) (int, error) {
	assignments, err := s.assignments.ListOpenDueBefore(ctx, ref.Add(s.window))
	if err != nil {
		return 0, fmt.Errorf("load due assignments: %w", err)
	}

	var (
		dispatched int
		errs       []error
	)
	for _, a := range assignments {
		if a.CompletedAt != nil || a.DueDate == nil {
			continue
		}
		kind := dueKind(*a.DueDate, ref, s.window)
		if kind == "" {
			continue
		}
		event := models.DueDateEvent{
			AssignmentID: a.ID,
			SurveyID:     a.SurveyID,
			StudentID:    a.StudentID,
			AdvisorID:    a.AdvisorID,
			DueDate:      a.DueDate.UTC(),
			Kind:         kind,
		}
		if err := s.dispatcher.Dispatch(ctx, event); err != nil {
			s.logger.Warn("due date event dispatch failed",
				zap.String("assignment_id", a.ID),
				zap.String("kind", kind),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		s.metrics.RecordNotification(kind)
		dispatched++
	}
	s.logger.Info("due date check complete",
		zap.Time("reference", ref),
		zap.Int("candidates", len(assignments)),
		zap.Int("dispatched", dispatched))
	return dispatched, errors.Join(errs...)
}

func dueKind(due, ref time.Time, window time.Duration) string {
	switch {
	case due.Before(ref):
		return models.EventPastDue
	case due.After(ref) && !due.After(ref.Add(window)):
		return models.EventDueSoon
	default:
		return ""
	}
}

// DueDateTaskID identifies an event so one is sent per assignment, kind
// and day.
func DueDateTaskID(event models.DueDateEvent, ref time.Time) string {
	return event.Kind + "-" + event.AssignmentID + "-" + ref.UTC().Format("20060102")
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher enqueues events on Redis through asynq.
type AsynqDispatcher struct {
	client     taskEnqueuer
	maxRetries int
	now        func() time.Time
}

// NewAsynqDispatcher wraps an asynq client.
func NewAsynqDispatcher(client taskEnqueuer, maxRetries int) *AsynqDispatcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &AsynqDispatcher{client: client, maxRetries: maxRetries, now: time.Now}
}

// Dispatch enqueues event. An event already enqueued today is not an error.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, event models.DueDateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeDueDateEvent, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(DueDateTaskID(event, d.now())),
		asynq.MaxRetry(d.maxRetries),
		asynq.Retention(24*time.Hour))
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// HandleDueDateTask is the asynq worker for due-date events. Delivery is
// handled downstream, so the hand-off is logged.
func HandleDueDateTask(logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var event models.DueDateEvent
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			return fmt.Errorf("decode due date event: %v: %w", err, asynq.SkipRetry)
		}
		logDueDateEvent(logger, event)
		return nil
	}
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// QueueDispatcher hands events to the in-process worker queue.
type QueueDispatcher struct {
	queue jobEnqueuer
	now   func() time.Time
}

// NewQueueDispatcher wraps a jobs queue.
func NewQueueDispatcher(queue jobEnqueuer) *QueueDispatcher {
	return &QueueDispatcher{queue: queue, now: time.Now}
}

// Dispatch enqueues event. Duplicates inside the queue's window are dropped.
func (d *QueueDispatcher) Dispatch(_ context.Context, event models.DueDateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = d.queue.Enqueue(jobs.Job{ID: DueDateTaskID(event, d.now()), Type: TypeDueDateEvent, Payload: payload})
	if errors.Is(err, jobs.ErrDuplicate) {
		return nil
	}
	return err
}

// DueDateJobHandler processes due-date jobs from the in-process queue.
func DueDateJobHandler(logger *zap.Logger) jobs.Handler {
	return func(_ context.Context, job jobs.Job) error {
		var event models.DueDateEvent
		if err := json.Unmarshal(job.Payload, &event); err != nil {
			return fmt.Errorf("decode due date event: %w", err)
		}
		logDueDateEvent(logger, event)
		return nil
	}
}

func logDueDateEvent(logger *zap.Logger, event models.DueDateEvent) {
	if logger == nil {
		return
	}
	logger.Info("assignment notification",
		zap.String("kind", event.Kind),
		zap.String("assignment_id", event.AssignmentID),
		zap.String("survey_id", event.SurveyID),
		zap.String("student_id", event.StudentID),
		zap.Time("due_date", event.DueDate))
}
