package imageapi

import (
	"net/url"
	"strings"
)

// Static roots under the data URL.
const (
	GeneratedImagesDir = "generated_images"
	ControlImagesDir   = "control_images"
)

// GeneratedImagePath is the path of a generated image under root.
func GeneratedImagePath(root, filename string) string {
	return joinPath(root, GeneratedImagesDir, filename)
}

// ControlImagePath is the path of a control image under root.
func ControlImagePath(root, filename string) string {
	return joinPath(root, ControlImagesDir, filename)
}

func joinPath(root, dir, filename string) string {
	return strings.TrimRight(root, "/") + "/" + dir + "/" + url.PathEscape(filename)
}
