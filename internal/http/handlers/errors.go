package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, not on
// the message text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInboundFailed = "inbound_failed"
	ErrCodeResetFailed   = "reset_failed"
)
