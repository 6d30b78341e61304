package decklist

import (
	"path"
	"strings"
)

type ViewerType int

const (
	ViewerTypeNone ViewerType = iota
	ViewerTypeImage
	ViewerTypePDF
)

// Dir is where the presentation page expects decklist files, relative to itself.
const Dir = "./decklists/"

type ViewerInfo struct {
	Type ViewerType
	URL  string
}

// GetViewerInfo works out how the presentation modal should show a decklist reference. Bare file
// names resolve into Dir; absolute URLs (an uploaded object on R2 for example) are used as is.
func GetViewerInfo(ref string) ViewerInfo {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ViewerInfo{Type: ViewerTypeNone}
	}

	url := ref
	if !isAbsolute(ref) {
		url = Dir + ref
	}

	// Strip any query string before looking at the extension
	name := strings.ToLower(ref)
	if idx := strings.IndexAny(name, "?#"); idx != -1 {
		name = name[:idx]
	}
	if path.Ext(name) == ".pdf" {
		return ViewerInfo{Type: ViewerTypePDF, URL: url}
	}

	// Everything else we accept on upload is an image
	return ViewerInfo{Type: ViewerTypeImage, URL: url}
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:") ||
		strings.HasPrefix(ref, "/")
}
