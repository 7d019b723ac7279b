package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrForbidden             ErrCode = "FORBIDDEN"
	ErrParticipantAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrHostAccessOnly        ErrCode = "HOST_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Contest-specific
	ErrContestNotFound     ErrCode = "CONTEST_NOT_FOUND"
	ErrContestNotJoinable  ErrCode = "CONTEST_NOT_JOINABLE"
	ErrInvalidEntryCode    ErrCode = "INVALID_ENTRY_CODE"
	ErrProblemNotFound     ErrCode = "PROBLEM_NOT_FOUND"
	ErrProblemNotInContest ErrCode = "PROBLEM_NOT_IN_CONTEST"
	ErrNotParticipant      ErrCode = "NOT_A_PARTICIPANT"
	ErrNoProblems          ErrCode = "NO_PROBLEMS"

	// Rate Limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// Authentication
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionActive:
		return "You are already signed in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// Authorization
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrParticipantAccessOnly:
		return "This resource is restricted to contest participants."
	case ErrHostAccessOnly:
		return "This resource is restricted to contest hosts."

	// Validation
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// Resources
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// Contest-specific
	case ErrContestNotFound:
		return "The contest was not found."
	case ErrContestNotJoinable:
		return "This contest is not available for joining."
	case ErrInvalidEntryCode:
		return "The contest entry code is incorrect."
	case ErrProblemNotFound:
		return "The problem was not found."
	case ErrProblemNotInContest:
		return "The problem is not part of this contest."
	case ErrNotParticipant:
		return "You are not a participant of this contest."
	case ErrNoProblems:
		return "This contest has no problems."

	// Rate Limiting
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// Server
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
