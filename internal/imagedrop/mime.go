package imagedrop

import "strings"

// allowedImagePrefixes lists the accepted MIME types. Matching is by prefix,
// so "image/svg" covers "image/svg+xml".
var allowedImagePrefixes = []string{
	"image/gif",
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/apng",
	"image/svg",
	"image/webp",
	"image/bmp",
	"image/x-icon",
	"image/vnd.microsoft.icon",
}

// IsAllowedImage reports whether mime starts, case-insensitively, with one
// of the allowed image types. Other image/* types such as
// image/vnd.adobe.photoshop are rejected. Content is never sniffed.
func IsAllowedImage(mime string) bool {
	mime = strings.ToLower(mime)
	for _, prefix := range allowedImagePrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}
