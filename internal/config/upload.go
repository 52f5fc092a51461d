package config

import "fmt"

const minPartSize int64 = 5 * 1024 * 1024

type UploadConfig struct {
	PartSize    int64
	Concurrency int
	// Secure switches the object storage client between https and http, only tests use http
	Secure bool
	// Endpoint overrides the object storage host derived from the region
	Endpoint string
}

func (c *UploadConfig) Validate() error {
	if c.PartSize < minPartSize {
		return fmt.Errorf("upload part size (%d) cannot be less than %d bytes", c.PartSize, minPartSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("upload concurrency (%d) needs to be greater than 0", c.Concurrency)
	}
	return nil
}
