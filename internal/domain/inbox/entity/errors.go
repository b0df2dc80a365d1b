package entity

import "errors"

// Domain errors for the inbox
var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrUnknownAccount        = errors.New("unknown account")
	ErrReportStorageDisabled = errors.New("report storage is not configured")
)
