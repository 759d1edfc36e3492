package service

import "errors"

var (
	// ErrGroupNotFound means no post of the group belongs to the requesting user.
	ErrGroupNotFound = errors.New("group not found")
	// ErrInvalidSubmission wraps every validation failure of a group submission.
	ErrInvalidSubmission = errors.New("invalid submission")
)
