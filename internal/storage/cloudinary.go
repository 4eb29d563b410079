package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryOptions carries the account credentials.
type CloudinaryOptions struct {
	CloudName string
	APIKey    string
	APISecret string
}

// CloudinaryStore uploads objects into Cloudinary folders and returns the
// secure delivery URL.
type CloudinaryStore struct {
	uploader cloudinaryUploader
}

func NewCloudinaryStore(opts CloudinaryOptions) (*CloudinaryStore, error) {
	if strings.TrimSpace(opts.CloudName) == "" || strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, errors.New("storage: cloudinary cloud name, api key and secret are required")
	}
	cld, err := cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	if err != nil {
		return nil, fmt.Errorf("storage: cloudinary client: %w", err)
	}
	return &CloudinaryStore{uploader: &cld.Upload}, nil
}

func (s *CloudinaryStore) String() string { return "cloudinary" }

func (s *CloudinaryStore) Put(ctx context.Context, obj Object) (Reference, error) {
	resourceType := "raw"
	if strings.HasPrefix(strings.ToLower(obj.MIMEType), "image/") {
		resourceType = "image"
	}
	params := uploader.UploadParams{
		Folder:       strings.Trim(obj.Folder, "/"),
		PublicID:     obj.Name,
		ResourceType: resourceType,
		Overwrite:    api.Bool(obj.Overwrite),
	}
	res, err := s.uploader.Upload(ctx, bytes.NewReader(obj.Bytes), params)
	if err != nil {
		return Reference{}, fmt.Errorf("storage: cloudinary upload: %w", err)
	}
	if res == nil {
		return Reference{}, errors.New("storage: cloudinary upload returned no result")
	}
	if res.Error.Message != "" {
		return Reference{}, fmt.Errorf("storage: cloudinary upload: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return Reference{}, errors.New("storage: cloudinary upload returned no url")
	}
	return Reference{URL: res.SecureURL, Key: res.PublicID}, nil
}

var _ Store = (*CloudinaryStore)(nil)
