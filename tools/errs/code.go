package errs

// 通用错误码
const (
	ServerInternalError = 500
	ArgsError           = 1001
	NoPermissionError   = 1002
	RecordNotFoundError = 1004

	TokenExpiredError = 1501
	TokenInvalidError = 1502

	// annotation / index errors
	MessageNotFoundError     = 2001
	AlertNotFoundError       = 2002
	ConversationTypeError    = 2003
	AnnotationLockedError    = 2101
	LockUnavailableError     = 2102
	VendorUnavailableError   = 2103
	NotificationPublishError = 2201
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrNoPermission   = NewCodeError(NoPermissionError, "NoPermissionError")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "RecordNotFoundError")

	ErrTokenExpired = NewCodeError(TokenExpiredError, "TokenExpiredError")
	ErrTokenInvalid = NewCodeError(TokenInvalidError, "TokenInvalidError")

	ErrMessageNotFound   = NewCodeError(MessageNotFoundError, "message does not exist")
	ErrAlertNotFound     = NewCodeError(AlertNotFoundError, "alert does not exist")
	ErrConversationType  = NewCodeError(ConversationTypeError, "conversation is not of type HealthCare or Support")
	ErrLocked            = NewCodeError(AnnotationLockedError, "Locked")
	ErrLockUnavailable   = NewCodeError(LockUnavailableError, "lock service unavailable")
	ErrVendorUnavailable = NewCodeError(VendorUnavailableError, "vendor unavailable")
	ErrNotifyPublish     = NewCodeError(NotificationPublishError, "notification publish failed")
)

func init() {
	_ = DefaultCodeRelation.Add(RecordNotFoundError, MessageNotFoundError)
	_ = DefaultCodeRelation.Add(RecordNotFoundError, AlertNotFoundError)
}

// IsTransient reports errors a caller may retry later: lock contention and
// infrastructure outages.
func IsTransient(err error) bool {
	return ErrLocked.Is(err) || ErrLockUnavailable.Is(err) || ErrVendorUnavailable.Is(err)
}
