package config

const (
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrBuildGatewayFmt       = "Failed to build persistence gateway: %v"
	ErrLoadConfigFmt         = "Failed to load config: %v"

	ErrListPosts           = "Failed to list posts"
	ErrPostNotFound        = "Post not found"
	ErrSessionExpired      = "This form has expired, please reload the page"
	ErrInvalidForm         = "Invalid form submission"
	ErrInternalServerError = "Internal server error"
)
