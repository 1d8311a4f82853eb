package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAccountLocked      ErrCode = "ACCOUNT_LOCKED"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrCandidateOnly     ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotEnrolledCode   ErrCode = "NOT_ENROLLED"
	ErrReviewPendingCode ErrCode = "REVIEW_PENDING"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Exam lifecycle
	ErrBatchStartedCode       ErrCode = "BATCH_ALREADY_STARTED"
	ErrAlreadyJoinedCode      ErrCode = "ALREADY_JOINED"
	ErrOutsideWindowCode      ErrCode = "OUTSIDE_TIME_WINDOW"
	ErrExamNotStartedCode     ErrCode = "EXAM_NOT_STARTED"
	ErrExamClosedCode         ErrCode = "EXAM_CLOSED"
	ErrNoActiveSessionCode    ErrCode = "NO_ACTIVE_SESSION"
	ErrAlreadySubmittedCode   ErrCode = "ALREADY_SUBMITTED"
	ErrSubmitWindowClosedCode ErrCode = "SUBMIT_WINDOW_CLOSED"
	ErrNoVariantsCode         ErrCode = "NO_VARIANTS"
	ErrNotSubmittedCode       ErrCode = "NOT_SUBMITTED"

	// Batch administration
	ErrBatchNotReleasedCode ErrCode = "BATCH_NOT_RELEASED"

	// Import / export
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid ID number/email or password."
	case ErrAccountLocked:
		return "This account is locked. Please contact an administrator."
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotEnrolledCode:
		return "You are not enrolled in this exam batch."
	case ErrReviewPendingCode:
		return "Your enrollment is still awaiting review."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	case ErrBatchStartedCode:
		return "This exam batch has already started; joining is closed."
	case ErrAlreadyJoinedCode:
		return "You have already joined this exam batch."
	case ErrOutsideWindowCode:
		return "The exam is not open at this time."
	case ErrExamNotStartedCode:
		return "The exam has not been started."
	case ErrExamClosedCode:
		return "The exam has ended; answers can no longer be saved."
	case ErrNoActiveSessionCode:
		return "No exam is currently in progress."
	case ErrAlreadySubmittedCode:
		return "This exam has already been submitted."
	case ErrSubmitWindowClosedCode:
		return "The submission window has closed."
	case ErrNoVariantsCode:
		return "No paper variants are available for this exam."
	case ErrNotSubmittedCode:
		return "This exam has not been submitted yet."

	case ErrBatchNotReleasedCode:
		return "The batch must be released before papers can be distributed."

	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "The file type is not supported."

	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
