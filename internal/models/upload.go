package models

import "fmt"

// TemporaryCredentials are short lived object storage credentials issued for a single upload.
type TemporaryCredentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// UploadTarget tells the client where a media file must be uploaded to.
type UploadTarget struct {
	Bucket      string               `json:"bucket"`
	Region      string               `json:"region"`
	Key         string               `json:"key"`
	Credentials TemporaryCredentials `json:"credentials"`
}

// PublicURL is the address the API expects for uploaded medias.
func (u UploadTarget) PublicURL() string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, u.Key)
}

type UploadedMedia struct {
	URL string `json:"url"`
}
