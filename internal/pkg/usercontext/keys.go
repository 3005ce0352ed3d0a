package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUserID      = "user_id"
	KeyRequestBody = "request_body"
	KeyGrant       = "usage_grant"
	KeyUpload      = "upload_file"
)
