package api

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"lexibrief/internal/models"
)

// LoadLogo reads the header image and returns it as a data URI. A failure is
// reported as an AssetLoadFailed *models.Failure; the page renders without
// the image in that case.
func LoadLogo(path string) (template.URL, error) {
	if path == "" {
		return "", models.NewFailure(models.AssetLoadFailed, "no logo configured", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", models.NewFailure(models.AssetLoadFailed, fmt.Sprintf("Couldn't load logo: %v", err), err)
	}
	if len(data) == 0 {
		return "", models.NewFailure(models.AssetLoadFailed, "logo file is empty", nil)
	}
	mime := mimetype.Detect(data).String()
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)), nil
}
