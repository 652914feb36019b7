// Package asset uploads encoded images to the remote asset store with a
// bounded retry policy and escalates DNS failures with operator diagnostics.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"greybackend/config"
)

// DefaultAPIHost is the host diagnosed when a DNS error does not name one.
const DefaultAPIHost = "api.cloudinary.com"

// Policy bounds every uploaded image. It travels with the request; the store
// applies it on ingest.
type Policy struct {
	MaxWidth  int
	MaxHeight int
	Quality   string
}

// String renders the policy as a Cloudinary transformation chain.
func (p Policy) String() string {
	return fmt.Sprintf("c_limit,w_%d,h_%d/q_%s", p.MaxWidth, p.MaxHeight, p.Quality)
}

// UploadRequest is one decoded image bound for one folder.
type UploadRequest struct {
	Data   []byte
	Folder string
	Policy Policy
}

// Store is the remote asset store.
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (secureURL string, err error)
	Destroy(ctx context.Context, publicID string) error
	// MissingCredentials names the unset credential settings, if any.
	MissingCredentials() []string
}

// RemoteError is a failure reported in the asset store's response body.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "asset store: " + e.Message }

type CloudinaryStore struct {
	cld     *cloudinary.Cloudinary
	missing []string
}

func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	var missing []string
	if cfg.CloudName == "" {
		missing = append(missing, "CLOUDINARY_CLOUD_NAME")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "CLOUDINARY_API_KEY")
	}
	if cfg.APISecret == "" {
		missing = append(missing, "CLOUDINARY_API_SECRET")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, missing: missing}, nil
}

func (s *CloudinaryStore) MissingCredentials() []string { return s.missing }

// Upload streams req.Data as file content. A string argument would be taken
// by the SDK as a local path or remote URL, so none is ever passed.
func (s *CloudinaryStore) Upload(ctx context.Context, req UploadRequest) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(req.Data), uploader.UploadParams{
		Folder:         req.Folder,
		ResourceType:   "auto",
		Transformation: req.Policy.String(),
	})
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", &RemoteError{Message: resp.Error.Message}
	}
	if resp.SecureURL == "" {
		return "", errors.New("asset store response has no secure_url")
	}
	return resp.SecureURL, nil
}

func (s *CloudinaryStore) Destroy(ctx context.Context, publicID string) error {
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	if resp.Error.Message != "" {
		return &RemoteError{Message: resp.Error.Message}
	}
	return nil
}
