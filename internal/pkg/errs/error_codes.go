/*
Package errs provides custom error types and application-level error code constants.

These error codes identify relay and request failures both in server logs and in the
error frames sent back to a misbehaving connection.
*/
package errs

// 1xxx: General Request and Frame Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that a frame or request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrRateLimitExceeded indicates that the request or message rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrMalformedMessage indicates that an event is missing a required field.
	ErrMalformedMessage = 1008

	// ErrUnsupportedEvent indicates that the event type is not part of the relay protocol.
	ErrUnsupportedEvent = 1009
)

// 2xxx: Room and Routing Errors
const (
	// ErrMessageContentTooLong indicates that a chat message exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrTargetNotFound indicates that a directed message named a userId that is not in the room.
	ErrTargetNotFound = 2301

	// ErrDuplicateUserID indicates that a join was rejected because another connection holds the userId.
	ErrDuplicateUserID = 2302
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
