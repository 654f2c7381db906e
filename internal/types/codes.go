package types

import (
	"errors"
	"net/http"
)

// Code is the machine-readable outcome carried in every response envelope.
type Code string

const (
	CodeSuccess              Code = "SUCCESS"
	CodeMediaContainsNoFaces Code = "MEDIA_CONTAINS_NO_FACES"

	CodeAuthMissing   Code = "AUT_MISSING"
	CodeAuthInvalid   Code = "AUT_INVALID"
	CodeAuthForbidden Code = "AUT_FORBIDDEN"

	CodeRateExceeded Code = "RATE_EXCEEDED"

	CodeFileMissing     Code = "FIL_MISSING"
	CodeFileTooLarge    Code = "FIL_TOO_LARGE"
	CodeFileUnsupported Code = "FIL_UNSUPPORTED"
	CodeTextMissing     Code = "TXT_MISSING"
	CodeTextTooShort    Code = "TXT_TOO_SHORT"
	CodeBadJSON         Code = "SYS_BAD_JSON"

	CodeProcessingError Code = "SYS_PROCESSING_ERROR"

	CodeKeyNotFound       Code = "KEY_NOT_FOUND"
	CodeKeyInvalidRequest Code = "KEY_INVALID_REQUEST"
	CodeKeyRevoked        Code = "KEY_REVOKED"
	CodeMgmtUnauthorized  Code = "MGMT_UNAUTHORIZED"
)

var defaultMessages = map[Code]string{
	CodeSuccess:              "Request was successful.",
	CodeMediaContainsNoFaces: "No faces were detected in the submitted media.",
	CodeAuthMissing:          "Missing API key. Please provide your API key in the X-API-Key header.",
	CodeAuthInvalid:          "Invalid API key. The key is unknown, revoked or expired.",
	CodeAuthForbidden:        "Your API key does not have access to this endpoint.",
	CodeRateExceeded:         "Daily request limit exceeded for this API key.",
	CodeFileMissing:          "A media file must be provided in the 'file' field.",
	CodeFileTooLarge:         "The uploaded file exceeds the maximum allowed size.",
	CodeFileUnsupported:      "The uploaded file type is not supported by this endpoint.",
	CodeTextMissing:          "The 'text' field is required.",
	CodeTextTooShort:         "Text is too short for reliable analysis.",
	CodeBadJSON:              "Request body is not valid JSON.",
	CodeProcessingError:      "An error occurred while processing the request.",
	CodeKeyNotFound:          "API key not found or does not belong to you.",
	CodeKeyInvalidRequest:    "Invalid API key request.",
	CodeKeyRevoked:           "API key has been revoked.",
	CodeMgmtUnauthorized:     "Unauthorized access.",
}

// Message returns the generic caller-facing message for c.
func (c Code) Message() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return defaultMessages[CodeProcessingError]
}

// HTTPStatus maps a code onto its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSuccess, CodeMediaContainsNoFaces:
		return http.StatusOK
	case CodeAuthMissing, CodeAuthInvalid, CodeAuthForbidden, CodeRateExceeded:
		return http.StatusForbidden
	case CodeFileMissing, CodeFileTooLarge, CodeFileUnsupported,
		CodeTextMissing, CodeTextTooShort, CodeBadJSON, CodeKeyInvalidRequest:
		return http.StatusBadRequest
	case CodeKeyNotFound:
		return http.StatusNotFound
	case CodeKeyRevoked:
		return http.StatusConflict
	case CodeMgmtUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (c Code) IsSuccess() bool {
	return c == CodeSuccess || c == CodeMediaContainsNoFaces
}

// Error is a gateway failure with a code. Err holds the internal cause and is
// never shown to callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func NewError(code Code, message string) *Error {
	if message == "" {
		message = code.Message()
	}
	return &Error{Code: code, Message: message}
}

// WrapError attaches an internal cause to a coded failure.
func WrapError(code Code, err error) *Error {
	return &Error{Code: code, Message: code.Message(), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err, treating anything uncoded as a
// processing error.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return CodeProcessingError
}
