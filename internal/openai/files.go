package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"finetuner/internal/core"
)

// UploadFile uploads a local file (JSONL training data for fine-tuning) and
// returns the created file object.
func (c *Client) UploadFile(ctx context.Context, path, purpose string) (*core.File, error) {
	if purpose == "" {
		purpose = core.FilePurposeFineTune
	}

	f, err := os.Open(path) //nolint:gosec // G304: path from config, not user input
	if err != nil {
		return nil, core.ErrUploadFailed(path, err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", purpose); err != nil {
		return nil, core.ErrUploadFailed(path, err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, core.ErrUploadFailed(path, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, core.ErrUploadFailed(path, fmt.Errorf("read file: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, core.ErrUploadFailed(path, err)
	}

	var file core.File
	if err := c.send(ctx, core.OpUploadFile, http.MethodPost, core.PathFiles, &buf, writer.FormDataContentType(), &file); err != nil {
		return nil, core.ErrUploadFailed(path, err)
	}
	return &file, nil
}
