/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template. Messages containing
printf verbs are formatted with the details passed to NewError.
*/
package errs

import "net/http"

var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Message is not valid JSON."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrMalformedMessage:  {Code: ErrMalformedMessage, Message: "Malformed %s message: missing %s."},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event type: %q."},

	// 2xxx
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrTargetNotFound:        {Code: ErrTargetNotFound, Message: "Target user not found: %s"},
	ErrDuplicateUserID:       {Code: ErrDuplicateUserID, Message: "User ID %s is already in use by another connection."},

	// 5xxx
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
