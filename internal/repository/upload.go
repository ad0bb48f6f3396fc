package repository

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/chatwire/chatwire/internal/wire"
	"github.com/chatwire/chatwire/pkg/failure"
	"github.com/chatwire/chatwire/pkg/result"
)

// RequestPresignedUploadURL asks the file service for a one-shot upload URL
// for the named file.
func (r *Repository) RequestPresignedUploadURL(ctx context.Context, fileName, fileType string) (string, error) {
	req := result.Map(
		wire.EncodePresignRequest(fileName, fileType),
		func(body []byte) wire.Request {
			built := wire.NewRequest(http.MethodPost, "").
				WithHeader("Content-Type", "application/json")
			built.Body = body
			return built
		},
	)
	uploadURL := result.FlatMap(req, func(built wire.Request) result.Result[string] {
		return result.FlatMap(r.files.Do(ctx, built), wire.DecodeUploadURL)
	})
	return uploadURL.Unpack()
}

// UploadAttachment pushes a local file through the two-step upload flow:
// request a presigned URL, PUT the bytes, return the rewritten public URL.
// A path that already is a secure remote URL comes back unchanged without
// any network traffic, so re-sharing an uploaded attachment is free.
func (r *Repository) UploadAttachment(ctx context.Context, localPath string) (string, error) {
	const op = "repository.UploadAttachment"

	if strings.HasPrefix(localPath, "https://") {
		return localPath, nil
	}

	payload, err := os.ReadFile(localPath)
	if err != nil {
		return "", failure.Network(op, "reading attachment file failed", err)
	}
	fileName := filepath.Base(localPath)
	contentType := mimetype.Detect(payload).String()

	uploadURL, err := r.RequestPresignedUploadURL(ctx, fileName, contentType)
	if err != nil {
		return "", err
	}

	uploaded := r.files.PutBinary(ctx, uploadURL, contentType, payload)
	if f := uploaded.Failure(); f != nil {
		return "", f
	}
	return r.cfg.CloudFrontBaseURL + "/uploads/" + fileName, nil
}
