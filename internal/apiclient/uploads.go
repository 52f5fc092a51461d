package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/socialpost/postctl/internal/models"
)

type uploadResponse struct {
	Medias []models.UploadedMedia `json:"medias"`
}

// UploadSingle uploads one file through the API and returns the public urls of the stored medias.
func (c *Client) UploadSingle(ctx context.Context, path string) ([]string, error) {
	form := newMultipartForm()
	form.addFile("media", path)
	return c.upload(ctx, form, c.endpoint("upload", "single"))
}

func (c *Client) UploadMultiple(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}
	form := newMultipartForm()
	for _, path := range paths {
		form.addFile("medias", path)
	}
	return c.upload(ctx, form, c.endpoint("upload", "multiple"))
}

func (c *Client) upload(ctx context.Context, form *multipartForm, endpoint string) ([]string, error) {
	req, err := form.newRequest(ctx, http.MethodPost, endpoint)
	if err != nil {
		return nil, err
	}
	var res uploadResponse
	err = c.do(req, &res)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(res.Medias))
	for _, media := range res.Medias {
		urls = append(urls, media.URL)
	}
	return urls, nil
}

// MultipartCredentials asks the API for temporary credentials to upload a file straight to object storage.
func (c *Client) MultipartCredentials(ctx context.Context, fileName, fileType string, fileSize int64) (models.UploadTarget, error) {
	body := struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
		FileSize int64  `json:"fileSize"`
	}{FileName: fileName, FileType: fileType, FileSize: fileSize}
	var target models.UploadTarget
	err := c.doJSON(ctx, http.MethodPost, c.endpoint("upload", "multipart-credentials"), body, &target)
	if err != nil {
		return models.UploadTarget{}, err
	}
	if target.Bucket == "" || target.Key == "" {
		return models.UploadTarget{}, fmt.Errorf("the api returned incomplete upload credentials for %s", fileName)
	}
	return target, nil
}
