package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument      = 1000
	ErrCodeInvalidJSON          = 1001
	ErrCodeRequestTooLarge      = 1002
	ErrCodeInvalidID            = 1003
	ErrCodeInvalidStatus        = 1004
	ErrCodeInvalidPhotoTag      = 1005
	ErrCodeInvalidContactMethod = 1006
	ErrCodeInvalidContactAddr   = 1007
	ErrCodeMissingRequired      = 1008

	// Domain state (2xxx)
	ErrCodeJobNotFound     = 2001
	ErrCodeRequestNotFound = 2002
	ErrCodeUserNotFound    = 2003
	ErrCodeUsernameExists  = 2101
	ErrCodeConflict        = 2102
	ErrCodeBadTransition   = 2103

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodePolicyDenied      = 3004
	ErrCodeRateLimited       = 3005

	// Internal/system (4xxx)
	ErrCodeInternal           = 4001
	ErrCodeStoreFailure       = 4002
	ErrCodeNotificationFailed = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeJobNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 502:
		return ErrCodeNotificationFailed
	default:
		return 0
	}
}
