package sync

import "strings"

// octetStream is the fallback MIME type for unknown extensions.
const octetStream = "application/octet-stream"

// mimeTypes maps lower-case file extensions (no dot) to the MIME type
// set as remote metadata on upload.
var mimeTypes = map[string]string{
	"md":   "text/markdown",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"json": "application/json",
}

// TypeForExtension returns the MIME type for a file extension (without
// the leading dot). Unknown extensions map to application/octet-stream.
func TypeForExtension(ext string) string {
	if t, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return t
	}

	return octetStream
}
