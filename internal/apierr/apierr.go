// Package apierr implements the kebab-code error taxonomy returned to
// HTTP clients. Services return a plain *Error (or a wrapped one);
// the HTTP edge is the only place that turns it into a status code and
// a JSON body. Everything un-typed defaults to 500 and is logged, not
// returned, so internal detail never leaks to the caller.
package apierr

import "fmt"

type Error struct {
	Code   string
	Status int
	msg    string
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.Code
}

func mk(status int, code string) *Error {
	return &Error{Code: code, Status: status}
}

func mkf(status int, code, format string, args ...any) *Error {
	return &Error{Code: code, Status: status, msg: fmt.Sprintf(format, args...)}
}

// 400 validation
func BadRequest(code string) *Error    { return mk(400, code) }
func MissingField(field string) *Error { return mkf(400, "missing_field", "missing field: %s", field) }

// 404 not-found
func NotFound(code string) *Error { return mk(404, code) }

// 403 forbidden
func Forbidden(code string) *Error { return mk(403, code) }

// 409 conflict
func Conflict(code string) *Error { return mk(409, code) }

// 422 policy
func Policy(code string) *Error { return mk(422, code) }

// 500 runtime (handler-raised messages surfaced verbatim)
func Runtime(code, detail string) *Error {
	if detail == "" {
		return mk(500, code)
	}
	return mkf(500, code, "%s", detail)
}

var (
	ErrKernelLocked              = Forbidden("kernel_locked")
	ErrWorkspaceNotFound         = NotFound("workspace_not_found")
	ErrAgentNotFound             = NotFound("agent_not_found")
	ErrTaskNotFound              = NotFound("task_not_found")
	ErrSubagentNotFound          = NotFound("subagent_not_found")
	ErrApprovalNotFound          = NotFound("approval_not_found")
	ErrDCTApprovalNotFound       = NotFound("dct_approval_not_found")
	ErrWorkspaceMismatch         = Forbidden("workspace_mismatch")
	ErrAgentWorkspaceMismatch    = Forbidden("agent_workspace_mismatch")
	ErrBadToken                  = Forbidden("bad_token")
	ErrExpired                   = Forbidden("expired")
	ErrInvalidOrExpiredToken     = Forbidden("invalid_or_expired_token")
	ErrTokenNotBoundToSubagent   = Forbidden("token_not_bound_to_this_subagent")
	ErrApprovalNotGranted        = Forbidden("approval_not_granted")
	ErrApprovalWorkspaceMismatch = Forbidden("approval_workspace_id_mismatch")
	ErrApprovalActionMismatch    = Forbidden("approval_action_request_id_mismatch")
	ErrSubagentNotOwned          = Forbidden("subagent_not_owned_by_requesting_agent")
	ErrAgentsOnlyRequestOwnTokens = Forbidden("agents_may_only_request_tokens_for_themselves_v1")
	ErrConflict                  = Conflict("conflict")
	ErrScopeBlocked              = Policy("scope_blocked_by_policy")
	ErrBlocked                   = Policy("blocked")
	ErrApprovalRequired          = Policy("approval_required")
	ErrDCTApprovalExpired        = Policy("dct_approval_expired")
	ErrDCTApprovalDenied         = Policy("dct_approval_denied")
	ErrUnknownAction             = Runtime("unknown_action", "")
	ErrDecryptFailed             = Runtime("decrypt_failed", "")
)

func SubagentAlready(status string) *Error {
	return Conflict(fmt.Sprintf("subagent_already_%s", status))
}

func AlreadyDecided(decision string) *Error {
	return Conflict(fmt.Sprintf("already_%s", decision))
}
