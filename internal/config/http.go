package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HLocation     = "Location"
	HHXRequest    = "HX-Request"
	HHXRedirect   = "HX-Redirect"

	CTypeHTML = "text/html; charset=utf-8"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

// Form field names shared by the templates and the handlers.
const (
	FieldSessionID = "session-id"
	FieldTitle     = "title"
	FieldBody      = "body"
	FieldImage     = "image"
)

// MaxFormMemory bounds the in-memory part of a multipart post form.
const MaxFormMemory = 4 << 20
