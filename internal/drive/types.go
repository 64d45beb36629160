package drive

// Object is a remote folder or file as returned by a children query.
// IDs are opaque strings; the client never inspects their format.
type Object struct {
	ID   string
	Name string
}

// folderMetadata is the JSON payload for folder creation.
type folderMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents"`
}

// fileMetadata is the JSON metadata part of a multipart file upload.
// Parents is set on create only; updates address the file by id.
type fileMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
}
