// Package archive copies generated images into our own R2 bucket. Provider
// result URLs expire after a while, so the history view needs a durable
// copy plus a small thumbnail for the grid.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/h2non/bimg"
)

const thumbWidth = 512

type Archiver struct {
	client    *s3.Client
	bucket    string
	publicURL string // format string with one %s for the object key
	http      *http.Client
}

func New(client *s3.Client, bucket, publicURL string) *Archiver {
	return &Archiver{
		client:    client,
		bucket:    bucket,
		publicURL: publicURL,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Archive fetches the image at srcURL and stores the original plus a webp
// thumbnail under the user's prefix. It returns the public URLs of both.
func (a *Archiver) Archive(ctx context.Context, userID, srcURL string) (string, string, error) {
	data, contentType, err := a.fetch(ctx, srcURL)
	if err != nil {
		return "", "", err
	}

	id := uuid.New().String()
	key := fmt.Sprintf("images/%s/originals/%s", userID, id)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", "", fmt.Errorf("archive put original: %w", err)
	}

	archiveURL := CleanURL(fmt.Sprintf(a.publicURL, key))

	thumb, err := bimg.NewImage(data).Process(bimg.Options{
		Width: thumbWidth,
		Type:  bimg.WEBP,
	})
	if err != nil {
		// The original made it up, a missing thumbnail is not worth failing over.
		return archiveURL, "", nil
	}

	thumbKey := fmt.Sprintf("images/%s/thumbs/%s.webp", userID, id)
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(thumbKey),
		Body:        bytes.NewReader(thumb),
		ContentType: aws.String("image/webp"),
	}); err != nil {
		return archiveURL, "", nil
	}

	return archiveURL, CleanURL(fmt.Sprintf(a.publicURL, thumbKey)), nil
}

func (a *Archiver) fetch(ctx context.Context, srcURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("archive build fetch: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("archive fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("archive fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("archive read image: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func CleanURL(urlStr string) string {
	urlStr = strings.ReplaceAll(urlStr, " ", "%20")
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	return parsedURL.String()
}
