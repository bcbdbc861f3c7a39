package services

import "errors"

var (
	// ErrTokenNotFound is a normal miss: no record for the lookup key.
	ErrTokenNotFound = errors.New("token not found")

	// ErrCorruptRecord marks stored data that violates the key scheme or
	// is missing fields every record must carry. Callers abort on it.
	ErrCorruptRecord = errors.New("corrupt token record")

	// ErrEndpointCreation means the push transport rejected the device
	// token or returned no endpoint handle.
	ErrEndpointCreation = errors.New("endpoint creation failed")

	// ErrSubscription means the broadcast-topic subscription produced no
	// subscription handle.
	ErrSubscription = errors.New("topic subscription failed")

	// ErrMissingHandles means a deleted record lacked the endpoint or
	// subscription ARN needed for teardown.
	ErrMissingHandles = errors.New("deleted record is missing endpoint or subscription arn")

	// ErrBroadcastFailed means the broadcast publish reported non-success
	// or omitted a message id.
	ErrBroadcastFailed = errors.New("broadcast publish failed")
)
