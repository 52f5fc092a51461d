package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/socialpost/postctl/internal/config"
	"github.com/socialpost/postctl/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPartSize    int64 = 25 * 1024 * 1024
	DefaultConcurrency int   = 2
)

// CredentialsRequester issues temporary object storage credentials for one file.
type CredentialsRequester interface {
	MultipartCredentials(ctx context.Context, fileName, fileType string, fileSize int64) (models.UploadTarget, error)
}

type objectPutter interface {
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

type putterFactory func(target models.UploadTarget) (objectPutter, error)

// Error is returned when a media could not be stored, Key is the object key that was attempted.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("uploading %s failed: %s", e.Key, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Uploader sends media files straight to object storage with credentials issued by the API.
type Uploader struct {
	api         CredentialsRequester
	partSize    int64
	concurrency int
	secure      bool
	endpoint    string
	newPutter   putterFactory
}

type UploaderOption func(*Uploader) error

func WithCredentialsRequester(api CredentialsRequester) UploaderOption {
	return func(u *Uploader) error {
		u.api = api
		return nil
	}
}

func WithConfig(uploadConfig config.UploadConfig) UploaderOption {
	return func(u *Uploader) error {
		err := uploadConfig.Validate()
		if err != nil {
			return err
		}
		u.partSize = uploadConfig.PartSize
		u.concurrency = uploadConfig.Concurrency
		u.secure = uploadConfig.Secure
		u.endpoint = uploadConfig.Endpoint
		return nil
	}
}

func withPutterFactory(f putterFactory) UploaderOption {
	return func(u *Uploader) error {
		u.newPutter = f
		return nil
	}
}

func NewUploader(options ...UploaderOption) (*Uploader, error) {
	u := &Uploader{partSize: DefaultPartSize, concurrency: DefaultConcurrency, secure: true}
	u.newPutter = u.minioPutter
	for _, opt := range options {
		err := opt(u)
		if err != nil {
			return nil, err
		}
	}
	if u.api == nil {
		return nil, fmt.Errorf("a credentials requester is required to create an uploader")
	}
	return u, nil
}

func (u *Uploader) minioPutter(target models.UploadTarget) (objectPutter, error) {
	endpoint := u.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", target.Region)
	}
	return minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			target.Credentials.AccessKeyID,
			target.Credentials.SecretAccessKey,
			target.Credentials.SessionToken,
		),
		Secure: u.secure,
		Region: target.Region,
	})
}

// UploadBlob uploads one media and returns its public url. onProgress, when set, receives
// the uploaded share in percent every time it changes.
func (u *Uploader) UploadBlob(ctx context.Context, media models.ComposerMedia, onProgress func(int)) (string, error) {
	file, err := os.Open(media.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	fileName := media.FileName
	if fileName == "" {
		fileName = filepath.Base(media.Path)
	}
	sanitized := SanitizeFileName(fileName)
	fileType := models.ContentTypeFor(sanitized)

	target, err := u.api.MultipartCredentials(ctx, sanitized, fileType, info.Size())
	if err != nil {
		return "", err
	}
	putter, err := u.newPutter(target)
	if err != nil {
		return "", &Error{Key: target.Key, Err: err}
	}
	slog.Debug("UPLOAD", "message", "starting upload", "key", target.Key, "bucket", target.Bucket, "size", info.Size())
	progress := &progressReader{total: info.Size(), onProgress: onProgress}
	_, err = putter.PutObject(ctx, target.Bucket, target.Key, file, info.Size(), minio.PutObjectOptions{
		ContentType: fileType,
		PartSize:    uint64(u.partSize),
		NumThreads:  uint(u.concurrency),
		Progress:    progress,
	})
	if err != nil {
		slog.Error("UPLOAD", "message", "upload failed", "key", target.Key, "error", err)
		return "", &Error{Key: target.Key, Err: err}
	}
	progress.finish()
	return target.PublicURL(), nil
}

// UploadMultiple uploads the medias in parallel and returns their urls in the same order.
// onTotal receives the overall progress weighted by file size. The first failure cancels the rest.
func (u *Uploader) UploadMultiple(ctx context.Context, medias []models.ComposerMedia, onTotal func(int)) ([]string, error) {
	total := &totalProgress{loaded: make([]int64, len(medias)), sizes: make([]int64, len(medias)), onTotal: onTotal}
	for i, media := range medias {
		size := media.Size
		if size == 0 {
			if info, err := os.Stat(media.Path); err == nil {
				size = info.Size()
			}
		}
		total.sizes[i] = size
		total.sum += size
	}
	urls := make([]string, len(medias))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(u.concurrency)
	for i, media := range medias {
		i, media := i, media
		group.Go(func() error {
			url, err := u.UploadBlob(ctx, media, func(pct int) { total.update(i, pct) })
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// progressReader is handed to the storage client, which reads from it as many bytes as it uploaded.
type progressReader struct {
	mu         sync.Mutex
	total      int64
	loaded     int64
	last       int
	onProgress func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded += int64(len(b))
	if p.loaded > p.total {
		p.loaded = p.total
	}
	p.report()
	return len(b), nil
}

func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = p.total
	p.report()
}

// report must be called with the lock held.
func (p *progressReader) report() {
	if p.onProgress == nil {
		return
	}
	pct := 100
	if p.total > 0 {
		pct = int(p.loaded * 100 / p.total)
	}
	if pct == p.last {
		return
	}
	p.last = pct
	p.onProgress(pct)
}

type totalProgress struct {
	mu      sync.Mutex
	loaded  []int64
	sizes   []int64
	sum     int64
	last    int
	onTotal func(int)
}

func (t *totalProgress) update(i int, pct int) {
	if t.onTotal == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded[i] = t.sizes[i] * int64(pct) / 100
	var loaded int64
	for _, l := range t.loaded {
		loaded += l
	}
	overall := 100
	if t.sum > 0 {
		overall = int(loaded * 100 / t.sum)
	}
	if overall == t.last {
		return
	}
	t.last = overall
	t.onTotal(overall)
}
