package gdrive

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/forPelevin/topiccut/internal/ports"
)

// Client uploads objects to Google Drive. The object key becomes the file
// name; the returned key is the Drive file id.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file).SupportsAllDrives(true)
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("gdrive upload failed: %w", err)
	}
	return ports.PutObjectOutput{ObjectKey: created.Id, Size: in.Size}, nil
}
