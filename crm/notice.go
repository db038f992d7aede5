// ABOUTME: Maps action results to the single notice shown to the user
// ABOUTME: Backend detail is logged under a ULID action id and never shown
package crm

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/ufficio/db"
	"github.com/harperreed/ufficio/models"
	"github.com/oklog/ulid/v2"
)

type NoticeKind string

const (
	NoticeSuccess    NoticeKind = "success"
	NoticeValidation NoticeKind = "validation"
	NoticeBackend    NoticeKind = "backend"
)

type Notice struct {
	Kind      NoticeKind        `json:"kind"`
	Action    string            `json:"action"`
	ActionID  string            `json:"action_id"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

func (n Notice) String() string {
	switch n.Kind {
	case NoticeSuccess:
		return "✓ " + n.Message
	case NoticeValidation:
		return "✗ " + n.Message
	default:
		return fmt.Sprintf("✗ %s (ref %s)", n.Message, n.ActionID)
	}
}

// IsUserError reports whether err is something the user can fix by changing
// the input, as opposed to a backend failure.
func IsUserError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, db.ErrNotFound) ||
		errors.Is(err, db.ErrInvalid) ||
		errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrInvalidContact) ||
		errors.Is(err, ErrLeadAlreadyConverted) ||
		errors.Is(err, ErrQuoteAlreadyLinked) ||
		errors.Is(err, ErrOrganizationInUse) ||
		errors.Is(err, ErrForbidden)
}

// NoticeFor turns the outcome of action into exactly one notice.
func NoticeFor(action string, err error, success string) Notice {
	n := Notice{Action: action, ActionID: ulid.Make().String()}

	if err == nil {
		n.Kind = NoticeSuccess
		n.Message = success
		return n
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		n.Kind = NoticeValidation
		n.Message = verr.Error()
		n.Fields = verr.Fields
	case IsUserError(err):
		n.Kind = NoticeValidation
		n.Message = fmt.Sprintf("Could not %s: %v", action, err)
	default:
		n.Kind = NoticeBackend
		n.Retryable = errors.Is(err, context.DeadlineExceeded)
		if n.Retryable {
			n.Message = fmt.Sprintf("Could not %s: the request timed out, please retry", action)
		} else {
			n.Message = fmt.Sprintf("Could not %s, please try again", action)
		}
	}
	return n
}

// Report builds the notice for action and logs it. Backend failures are
// logged at error level with the full cause.
func (s *Service) Report(action string, err error, success string) Notice {
	n := NoticeFor(action, err, success)
	switch n.Kind {
	case NoticeSuccess:
		s.log.Info(n.Message, "action", action, "action_id", n.ActionID)
	case NoticeValidation:
		s.log.Warn("action rejected", "action", action, "action_id", n.ActionID, "error", err)
	default:
		attrs := []any{"action", action, "action_id", n.ActionID, "retryable", n.Retryable, "error", err}
		var step *StepError
		if errors.As(err, &step) {
			attrs = append(attrs, "step", step.Step, "step_name", step.Name)
		}
		s.log.Error("action failed", attrs...)
	}
	return n
}
