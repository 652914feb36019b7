package asset

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"greybackend/pkg/logger"
	"greybackend/pkg/metrics"
)

// MaxBatchSize is the largest batch the HTTP boundary accepts.
const MaxBatchSize = 7

// Uploader is the single-unit contract the Coordinator fans out over.
type Uploader interface {
	Upload(ctx context.Context, payload, folder string) (string, error)
	Delete(ctx context.Context, assetURL string) bool
}

// Coordinator uploads a batch concurrently, all or nothing.
type Coordinator struct {
	uploader      Uploader
	defaultFolder string
	compensate    bool
	logger        *zap.Logger
}

// NewCoordinator builds a Coordinator. With compensate set, assets from
// units that succeeded are deleted after the batch fails.
func NewCoordinator(u Uploader, defaultFolder string, compensate bool, log *zap.Logger) *Coordinator {
	return &Coordinator{
		uploader:      u,
		defaultFolder: defaultFolder,
		compensate:    compensate,
		logger:        logger.OrNop(log),
	}
}

// UploadMany returns the URLs in input order, or a *BatchUploadError for the
// first unit that failed. A failure cancels nothing: every started unit
// runs to completion before UploadMany returns.
func (c *Coordinator) UploadMany(ctx context.Context, payloads []string, folder string) ([]string, error) {
	if folder == "" {
		folder = c.defaultFolder
	}
	log := logger.WithTrace(ctx, c.logger).With(zap.String("folder", folder), zap.Int("batch_size", len(payloads)))

	urls := make([]string, len(payloads))
	var g errgroup.Group
	for i, p := range payloads {
		g.Go(func() error {
			u, err := c.uploader.Upload(ctx, p, folder)
			if err != nil {
				return &BatchUploadError{Index: i, Err: err}
			}
			urls[i] = u
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("batch upload failed", zap.Error(err), zap.NamedError("cause", unwrapOnce(err)))
		metrics.IncrementBatchUpload("failure")
		if c.compensate {
			c.rollback(ctx, log, urls)
		}
		return nil, err
	}
	metrics.IncrementBatchUpload("success")
	return urls, nil
}

func (c *Coordinator) rollback(ctx context.Context, log *zap.Logger, urls []string) {
	var g errgroup.Group
	for _, u := range urls {
		if u == "" {
			continue
		}
		g.Go(func() error {
			if !c.uploader.Delete(ctx, u) {
				log.Warn("orphaned asset left after failed batch", zap.String("url", u))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func unwrapOnce(err error) error {
	if be, ok := err.(*BatchUploadError); ok {
		return be.Err
	}
	return err
}
