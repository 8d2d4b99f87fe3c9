package activity

import "errors"

var (
	ErrNotFound            = errors.New("activity not found")
	ErrAuthorizationDenied = errors.New("only the author of an activity or an administrator can manage it")
	ErrVersionConflict     = errors.New("the activity has been modified since it was read")
)
