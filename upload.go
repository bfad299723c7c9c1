package wpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
)

// uploadFieldName is the multipart part carrying the file.
const uploadFieldName = "file"

// Upload posts a multipart/form-data body to endpoint with the file in the
// "file" part and fields as extra form values. The upload timeout applies.
func (e *Executor) Upload(ctx context.Context, endpoint, filename string, file io.Reader, fields map[string]string, opts ...RequestOption) (*Response, error) {
	d, err := newUploadRequest(endpoint, filename, file, fields, buildRequestOptions(opts))
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, d)
}

func newUploadRequest(endpoint, filename string, file io.Reader, fields map[string]string, ro *requestOptions) (RequestDescriptor, error) {
	if file == nil {
		return RequestDescriptor{}, newValidationError("upload requires a file reader")
	}
	if filename == "" {
		return RequestDescriptor{}, newValidationError("upload requires a filename")
	}

	body, contentType, err := buildMultipart(filename, file, fields)
	if err != nil {
		return RequestDescriptor{}, &ClientError{
			Type:    ErrorTypeValidation,
			Message: "failed to encode upload",
			Cause:   err,
		}
	}

	d := RequestDescriptor{
		Method:      "POST",
		Path:        endpoint,
		Query:       ro.query,
		Body:        body,
		ContentType: contentType,
		Headers:     ro.headers,
		Timeout:     ro.timeout,
		MaxRetries:  ro.maxRetries,
		Upload:      true,
	}
	if d.Headers.Get("Content-Disposition") == "" {
		d.Headers.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
	}
	return d, nil
}

// buildMultipart buffers the whole form so retries can resend it.
func buildMultipart(filename string, file io.Reader, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile(uploadFieldName, filepath.Base(filename))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
