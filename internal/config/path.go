package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticUrlPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout  = "layout.html"
	TemplateIndex   = "index.html"
	TemplateForm    = "form.html"
	TemplatePreview = "preview.html"

	ImagePlaceholder = StaticUrlPath + "img-placeholder.svg"
)
