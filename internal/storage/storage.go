// Package storage selects where finished clips are published.
package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/forPelevin/topiccut/internal/ports"
	"github.com/forPelevin/topiccut/internal/storage/gdrive"
	"github.com/forPelevin/topiccut/internal/storage/localfs"
)

type Provider = ports.ObjectStore

type Config struct {
	// Provider is none, localfs or gdrive.
	Provider  string
	LocalRoot string

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string
}

func (c Config) Validate() error {
	switch c.Provider {
	case "", "none":
	case "localfs":
		if c.LocalRoot == "" {
			return fmt.Errorf("publish.local_root is required for localfs")
		}
	case "gdrive":
		if c.GDriveClientID == "" || c.GDriveClientSecret == "" || c.GDriveRefreshToken == "" {
			return fmt.Errorf("gdrive publishing needs client id, client secret and refresh token")
		}
	default:
		return fmt.Errorf("unknown publish provider: %s", c.Provider)
	}
	return nil
}

// NewProvider returns nil for "none".
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "localfs":
		return localfs.New(cfg.LocalRoot), nil
	case "gdrive":
		return newGDriveProvider(ctx, cfg)
	default:
		return nil, nil
	}
}

func newGDriveProvider(ctx context.Context, cfg Config) (Provider, error) {
	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}

// PutFile uploads a local file under prefix/<base name>.
func PutFile(ctx context.Context, p Provider, prefix, localPath string) (ports.PutObjectOutput, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	base := filepath.Base(localPath)
	return p.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   path.Join(prefix, base),
		ContentType: mime.TypeByExtension(filepath.Ext(base)),
		Reader:      f,
		Size:        st.Size(),
	})
}
