// Package upload is the stateless image-upload pass-through: it accepts a
// base64 data URL plus optional owner/pet identifiers and stores the image
// in Cloudinary, returning the stored-object URL. No decision logic lives
// here.
package upload

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Result describes one stored image.
type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Uploader stores one image and returns where it landed.
type Uploader interface {
	Upload(ctx context.Context, dataURL, folder, publicID string) (Result, error)
}

// Cloudinary is the production Uploader.
type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary creates a Cloudinary uploader from account credentials.
func NewCloudinary(cloudName, apiKey, apiSecret string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld}, nil
}

// Upload stores a base64 data URL ("data:image/png;base64,...") as an image.
func (c *Cloudinary) Upload(ctx context.Context, dataURL, folder, publicID string) (Result, error) {
	res, err := c.cld.Upload.Upload(ctx, dataURL, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "image",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return Result{}, fmt.Errorf("cloudinary upload: %w", err)
	}

	return Result{
		URL:      res.SecureURL,
		PublicID: res.PublicID,
		Width:    res.Width,
		Height:   res.Height,
	}, nil
}
