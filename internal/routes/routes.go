// Package routes defines HTTP route constants for the application.
package routes

const (
	RootPath   = "/"
	RobotsPath = "/robots.txt"

	CreatePost = "/create"

	// EditPost takes the post id as its {id} wildcard.
	EditPostPrefix = "/posts/"
	EditPost       = EditPostPrefix + "{id}"

	PartialsImage = "/partials/image"

	SSEPath = "/sse"
)

func EditPostPath(id string) string {
	return EditPostPrefix + id
}
