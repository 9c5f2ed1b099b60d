package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/sirupsen/logrus"

	"image-scraper/pkg/config"
	"image-scraper/pkg/fetch"
	"image-scraper/pkg/models"
	"image-scraper/pkg/storage"
	"image-scraper/pkg/utils"
)

// ImageFetcher downloads one image URL into the save directory
type ImageFetcher struct {
	fetcher *fetch.Fetcher
	robots  *fetch.RobotsHandler // nil unless robots.txt is respected
	saveDir *storage.SaveDir
	cfg     *config.AppConfig
	log     *logrus.Entry
}

// NewImageFetcher creates an ImageFetcher. robots may be nil.
func NewImageFetcher(
	fetcher *fetch.Fetcher,
	robots *fetch.RobotsHandler,
	saveDir *storage.SaveDir,
	cfg *config.AppConfig,
	log *logrus.Entry,
) *ImageFetcher {
	return &ImageFetcher{
		fetcher: fetcher,
		robots:  robots,
		saveDir: saveDir,
		cfg:     cfg,
		log:     log,
	}
}

// Fetch downloads absURL and saves it as image_{index}{ext}, or the next free suffixed name.
// It never returns an error: every problem is reported through the result's Outcome.
func (f *ImageFetcher) Fetch(ctx context.Context, absURL string, index int) models.DownloadResult {
	result := models.DownloadResult{URL: absURL, Index: index}
	imgLog := f.log.WithFields(logrus.Fields{"img_url": absURL, "index": index})

	if f.robots != nil {
		if parsed, err := url.Parse(absURL); err == nil && isHTTPScheme(parsed.Scheme) && !f.robots.Allowed(ctx, parsed) {
			imgLog.Info("Image disallowed by robots.txt")
			result.Outcome = models.OutcomeRejected
			result.Reason = "disallowed by robots.txt"
			result.Err = utils.ErrRobotsDisallowed
			return result
		}
	}

	resp, err := f.fetcher.Get(ctx, absURL)
	if err != nil {
		imgLog.Warnf("Image request failed: %v", err)
		result.Outcome = models.OutcomeFailed
		result.Err = err
		return result
	}
	defer resp.Body.Close()

	contentType := NormalizeContentType(resp.Header.Get("Content-Type"))
	result.ContentType = contentType

	var ext string
	switch {
	case contentType == "":
		// Servers that omit the header are assumed to be sending an image
		ext = f.cfg.FallbackExtension
	case !IsAcceptedImageType(contentType):
		imgLog.WithField("content_type", contentType).Info("Skipping non-image content type")
		result.Outcome = models.OutcomeRejected
		result.Reason = fmt.Sprintf("unsupported content type %q", contentType)
		result.Err = fmt.Errorf("%w: %s", utils.ErrUnrecognizedContentType, contentType)
		return result
	default:
		ext = ExtensionFor(contentType, f.cfg.FallbackExtension)
	}

	desired := fmt.Sprintf("image_%d%s", index, ext)
	outFile, filename, err := f.saveDir.CreateUnique(desired)
	if err != nil {
		imgLog.Errorf("Cannot create image file: %v", err)
		result.Outcome = models.OutcomeFailed
		result.Err = err
		return result
	}

	written, copyErr := copyChunks(outFile, resp.Body, f.cfg.ChunkSize, filename)
	closeErr := outFile.Close()
	result.BytesWritten = written

	if copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("%w: closing image file '%s' after write: %w", utils.ErrFilesystem, filename, closeErr)
	}
	if copyErr != nil {
		// The partial file stays on disk
		imgLog.WithField("filename", filename).Errorf("Image download interrupted after %d bytes: %v", written, copyErr)
		result.Outcome = models.OutcomeFailed
		result.Err = copyErr
		return result
	}

	imgLog.WithFields(logrus.Fields{"filename": filename, "bytes": written}).Info("Saved image")
	result.Outcome = models.OutcomeSaved
	result.Filename = filename
	return result
}

func isHTTPScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// copyChunks streams src into dst chunkSize bytes at a time, keeping read and write
// failures distinguishable in the returned error.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int, filename string) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			w, writeErr := dst.Write(buf[:n])
			written += int64(w)
			if writeErr == nil && w != n {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return written, fmt.Errorf("%w: writing image file '%s': %w", utils.ErrFilesystem, filename, writeErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, readErr)
		}
	}
}
