package service

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/noah-isme/survey-review-api/internal/models"
	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

var optionFolder = cases.Fold()

// IsRequired decides whether q must be answered given the answers known so
// far.
//
// A question with a dependency is required only when the dependency's answer
// equals DependsOnValue; an unanswered dependency makes it not required.
// Otherwise the explicit flag wins, and without it every question is required
// except a multiple choice question offering exactly Yes and No.
func IsRequired(q models.Question, prior map[string]models.AnswerValue) bool {
	if dep := dependencyID(q); dep != "" {
		answer, ok := prior[dep]
		if !ok || answer.IsBlank() {
			return false
		}
		expected := ""
		if q.DependsOnValue != nil {
			expected = *q.DependsOnValue
		}
		return answer.String() == expected
	}
	if q.Required {
		return true
	}
	if q.Type == models.QuestionMultipleChoice && isYesNo(q.Options) {
		return false
	}
	return true
}

// ComputeRequirements applies IsRequired to every question.
func ComputeRequirements(questions []models.OrderedQuestion, answers map[string]models.AnswerValue) map[string]bool {
	out := make(map[string]bool, len(questions))
	for _, q := range questions {
		out[q.ID] = IsRequired(q.Question, answers)
	}
	return out
}

// DependencyUnanswered reports whether q depends on a question that has no
// answer in prior. Such questions are neither validated nor stored.
func DependencyUnanswered(q models.Question, prior map[string]models.AnswerValue) bool {
	dep := dependencyID(q)
	if dep == "" {
		return false
	}
	answer, ok := prior[dep]
	return !ok || answer.IsBlank()
}

func dependencyID(q models.Question) string {
	if q.DependsOnQuestionID == nil {
		return ""
	}
	return strings.TrimSpace(*q.DependsOnQuestionID)
}

func isYesNo(options models.StringList) bool {
	normalized := make([]string, 0, len(options))
	for _, opt := range options {
		if t := strings.TrimSpace(opt); t != "" {
			normalized = append(normalized, optionFolder.String(t))
		}
	}
	if len(normalized) != 2 {
		return false
	}
	return (normalized[0] == "yes" && normalized[1] == "no") || (normalized[0] == "no" && normalized[1] == "yes")
}

// ValidateDependencyGraph rejects questions that depend on themselves, on a
// question outside the set, or that form a dependency cycle.
func ValidateDependencyGraph(questions []models.Question) error {
	deps := make(map[string]string, len(questions))
	for _, q := range questions {
		deps[q.ID] = ""
	}
	for _, q := range questions {
		dep := dependencyID(q)
		if dep == "" {
			continue
		}
		if dep == q.ID {
			return dependencyError(fmt.Sprintf("question %s depends on itself", q.ID), []string{q.ID})
		}
		if _, ok := deps[dep]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %s depends on unknown question %s", q.ID, dep))
		}
		deps[q.ID] = dep
	}

	// Each question has at most one dependency, so following the chain from
	// every node finds any cycle.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deps))
	for _, q := range questions {
		var path []string
		id := q.ID
		for id != "" && state[id] != done {
			if state[id] == visiting {
				return dependencyError("question dependencies form a cycle", cycleFrom(path, id))
			}
			state[id] = visiting
			path = append(path, id)
			id = deps[id]
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}

func cycleFrom(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			return append([]string(nil), path[i:]...)
		}
	}
	return path
}

func dependencyError(message string, ids []string) *appErrors.Error {
	err := appErrors.Clone(appErrors.ErrDependencyCycle, message)
	err.Details = map[string]interface{}{"question_ids": ids}
	return err
}
