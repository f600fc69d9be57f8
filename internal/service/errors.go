package service

type ErrorCode string

const (
	ErrorCodeUserExists         ErrorCode = "USER_EXISTS"
	ErrorCodeTeamExists         ErrorCode = "TEAM_EXISTS"
	ErrorCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrorCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrorCodeInvalidBody        ErrorCode = "INVALID_BODY"
	ErrorCodeUnspecified        ErrorCode = "UNSPECIFIED"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	return e.Message
}
