package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/socialpost/postctl/internal/models"
)

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	fileName string
	open     func() (io.ReadCloser, error)
}

// multipartForm streams its parts from disk. Every call to body produces the whole form again,
// which is what makes multipart requests replayable after a session refresh.
type multipartForm struct {
	boundary string
	fields   []formField
	files    []formFile
}

func newMultipartForm() *multipartForm {
	return &multipartForm{boundary: multipart.NewWriter(io.Discard).Boundary()}
}

func (f *multipartForm) addField(name, value string) {
	f.fields = append(f.fields, formField{name: name, value: value})
}

func (f *multipartForm) addFile(field, path string) {
	f.files = append(f.files, formFile{
		field:    field,
		fileName: filepath.Base(path),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	})
}

func (f *multipartForm) contentType() string {
	return "multipart/form-data; boundary=" + f.boundary
}

func (f *multipartForm) body() (io.ReadCloser, error) {
	reader, writer := io.Pipe()
	go func() {
		writer.CloseWithError(f.write(writer))
	}()
	return reader, nil
}

func (f *multipartForm) write(w io.Writer) error {
	mw := multipart.NewWriter(w)
	err := mw.SetBoundary(f.boundary)
	if err != nil {
		return err
	}
	for _, field := range f.fields {
		err = mw.WriteField(field.name, field.value)
		if err != nil {
			return err
		}
	}
	for _, file := range f.files {
		err = f.writeFile(mw, file)
		if err != nil {
			return err
		}
	}
	return mw.Close()
}

func (f *multipartForm) writeFile(mw *multipart.Writer, file formFile) error {
	header := make(textproto.MIMEHeader)
	header.Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(file.field), escapeQuotes(file.fileName)),
	)
	header.Set(echo.HeaderContentType, models.ContentTypeFor(file.fileName))
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	src, err := file.open()
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(part, src)
	return err
}

func (f *multipartForm) newRequest(ctx context.Context, method, endpoint string) (*http.Request, error) {
	body, err := f.body()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		body.Close()
		return nil, err
	}
	req.GetBody = f.body
	req.Header.Set(echo.HeaderContentType, f.contentType())
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	return req, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
