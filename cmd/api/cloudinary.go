package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// uploadProductImage uploads a file to Cloudinary under the products folder
// with a controlled public ID and returns the secure URL.
func (app *application) uploadProductImage(ctx context.Context, file io.Reader, productID int64) (string, error) {
	publicID := fmt.Sprintf("product_%d_%s", productID, uuid.New().String())

	resp, err := app.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:    "products",
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}

	return resp.SecureURL, nil
}

func (app *application) deleteImageFromCloudinary(ctx context.Context, imageURL string) error {
	publicID, err := extractPublicIDFromURL(imageURL)
	if err != nil {
		return fmt.Errorf("failed to extract public ID: %w", err)
	}

	_, err = app.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete image from Cloudinary: %w", err)
	}

	return nil
}

// extractPublicIDFromURL pulls the public ID out of a Cloudinary delivery URL.
func extractPublicIDFromURL(imageURL string) (string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	pathParts := strings.Split(parsedURL.Path, "/")
	for i, part := range pathParts {
		if part == "upload" && i+1 < len(pathParts) {
			publicID := strings.Join(pathParts[i+1:], "/")
			// Strip the version segment and the file extension.
			if idx := strings.Index(publicID, "/"); idx > 0 && strings.HasPrefix(publicID, "v") {
				publicID = publicID[idx+1:]
			}
			if idx := strings.LastIndex(publicID, "."); idx > 0 {
				publicID = publicID[:idx]
			}
			return publicID, nil
		}
	}

	return "", errors.New("failed to extract public ID from URL")
}
