package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL   = "https://www.googleapis.com/drive/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	// FolderMIMEType marks an object as a folder in the remote store.
	FolderMIMEType = "application/vnd.google-apps.folder"

	// RootParentID is the well-known alias for the top of the remote
	// folder hierarchy.
	RootParentID = "root"
)

// Client talks to the remote store's folder/file object API.
//
// All four operations are single request/response HTTP calls issued from
// the sync pass goroutine; the client holds no connection state beyond
// the underlying http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	uploadURL  string
}

// NewClient creates a remote store client with the given http.Client,
// which is expected to carry authentication (see NewHTTPClient).
// If httpClient is nil, http.DefaultClient is used.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		uploadURL:  defaultUploadURL,
	}
}

// ListChildren returns the non-trashed children of parentID, filtered by
// exact name when name is non-empty and restricted to folders when
// foldersOnly is set.
func (c *Client) ListChildren(ctx context.Context, parentID, name string, foldersOnly bool) ([]Object, error) {
	clauses := []string{
		fmt.Sprintf("'%s' in parents", escapeQuery(parentID)),
		"trashed = false",
	}

	if name != "" {
		clauses = append(clauses, fmt.Sprintf("name = '%s'", escapeQuery(name)))
	}

	if foldersOnly {
		clauses = append(clauses, fmt.Sprintf("mimeType = '%s'", FolderMIMEType))
	}

	params := url.Values{}
	params.Set("q", strings.Join(clauses, " and "))
	params.Set("fields", "files(id,name)")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	body, err := c.do("list children", req)
	if err != nil {
		return nil, err
	}

	var objects []Object

	for _, f := range gjson.GetBytes(body, "files").Array() {
		objects = append(objects, Object{
			ID:   f.Get("id").String(),
			Name: f.Get("name").String(),
		})
	}

	return objects, nil
}

// CreateFolder creates a folder named name under parentID and returns
// its id.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	payload, err := json.Marshal(folderMetadata{
		Name:     name,
		MimeType: FolderMIMEType,
		Parents:  []string{parentID},
	})
	if err != nil {
		return "", fmt.Errorf("marshalling folder metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files?fields=id", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do("create folder", req)
	if err != nil {
		return "", err
	}

	return objectID("create folder", body)
}

// CreateFile uploads a new file under parentID and returns its id.
func (c *Client) CreateFile(ctx context.Context, parentID, name, mimeType string, content []byte) (string, error) {
	meta := fileMetadata{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}

	req, err := c.uploadRequest(ctx, http.MethodPost, c.uploadURL+"/files", meta, mimeType, content)
	if err != nil {
		return "", err
	}

	body, err := c.do("create file", req)
	if err != nil {
		return "", err
	}

	return objectID("create file", body)
}

// UpdateFile replaces the name, MIME type, and content of an existing
// file in place and returns its (unchanged) id.
func (c *Client) UpdateFile(ctx context.Context, id, name, mimeType string, content []byte) (string, error) {
	meta := fileMetadata{
		Name:     name,
		MimeType: mimeType,
	}

	req, err := c.uploadRequest(ctx, http.MethodPatch, c.uploadURL+"/files/"+url.PathEscape(id), meta, mimeType, content)
	if err != nil {
		return "", err
	}

	body, err := c.do("update file", req)
	if err != nil {
		return "", err
	}

	return objectID("update file", body)
}

// uploadRequest builds a multipart/related request carrying a JSON
// metadata part followed by the raw media part.
func (c *Client) uploadRequest(ctx context.Context, method, endpoint string, meta fileMetadata, mimeType string, content []byte) (*http.Request, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshalling file metadata: %w", err)
	}

	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": []string{"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, fmt.Errorf("writing metadata part: %w", err)
	}

	if _, err := metaPart.Write(payload); err != nil {
		return nil, fmt.Errorf("writing metadata part: %w", err)
	}

	mediaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": []string{mimeType},
	})
	if err != nil {
		return nil, fmt.Errorf("writing media part: %w", err)
	}

	if _, err := mediaPart.Write(content); err != nil {
		return nil, fmt.Errorf("writing media part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint+"?uploadType=multipart&fields=id", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+w.Boundary())

	return req, nil
}

// do sends the request and maps failures onto the error taxonomy:
// token refresh failures and 401s become *AuthError, rate limits and
// server errors become transient *RemoteError, every other non-2xx
// status is permanent.
func (c *Client) do(op string, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &AuthError{Err: err}
		}

		return nil, &RemoteError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Transient: true, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	msg := gjson.GetBytes(body, "error.message").String()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Err: fmt.Errorf("%s: HTTP 401: %s", op, msg)}
	}

	transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500

	return nil, &RemoteError{
		Op:        op,
		Status:    resp.StatusCode,
		Transient: transient,
		Message:   msg,
	}
}

// objectID extracts the id field from a create/update response body.
func objectID(op string, body []byte) (string, error) {
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		return "", &RemoteError{Op: op, Message: "response missing object id"}
	}

	return id, nil
}

// escapeQuery escapes a value for inclusion in a single-quoted metadata
// query clause.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)

	return strings.ReplaceAll(s, `'`, `\'`)
}
