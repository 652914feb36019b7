package asset

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"greybackend/pkg/logger"
	"greybackend/pkg/metrics"
	"greybackend/pkg/otel"
	"greybackend/pkg/util"
)

// Resolver performs the diagnostic lookup after a name-resolution failure.
// *net.Resolver satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

type Options struct {
	DefaultFolder string
	MaxRetries    int
	BaseDelay     time.Duration
	Policy        Policy
}

// Client uploads single images. It is safe for concurrent use.
type Client struct {
	store    Store
	resolver Resolver
	opts     Options
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewClient(store Store, resolver Resolver, opts Options, log *zap.Logger) *Client {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Client{
		store:    store,
		resolver: resolver,
		opts:     opts,
		logger:   logger.OrNop(log),
		sleep:    sleepContext,
	}
}

// Upload stores payload under folder and returns its public URL. A payload
// that is not base64 is rejected before any remote call. A host that does not
// resolve fails immediately after diagnostics; any other failure is retried
// MaxRetries times with linear backoff.
func (c *Client) Upload(ctx context.Context, payload, folder string) (secureURL string, err error) {
	if folder == "" {
		folder = c.opts.DefaultFolder
	}
	ctx, span := otel.StartSpan(ctx, "asset.upload", attribute.String("asset.folder", folder))
	defer func() { otel.End(span, err) }()
	return c.upload(ctx, payload, folder)
}

func (c *Client) upload(ctx context.Context, payload, folder string) (string, error) {
	log := logger.WithTrace(ctx, c.logger).With(zap.String("folder", folder))

	if missing := c.store.MissingCredentials(); len(missing) > 0 {
		log.Warn("asset store credentials appear missing", zap.Strings("check_env", missing))
	}

	data, err := DecodePayload(payload)
	if err != nil {
		metrics.IncrementUploadAttempt("invalid")
		log.Warn("rejected asset payload", zap.Error(err))
		return "", &UploadError{Kind: KindInvalidPayload, Err: err}
	}

	start := time.Now()
	req := UploadRequest{Data: data, Folder: folder, Policy: c.opts.Policy}
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxRetries+1; attempt++ {
		secureURL, err := c.store.Upload(ctx, req)
		if err == nil {
			metrics.IncrementUploadAttempt("success")
			metrics.RecordUploadDuration("success", time.Since(start))
			return secureURL, nil
		}

		_, kind := util.ClassifyError(err)
		switch kind {
		case util.KindNameResolution:
			metrics.IncrementUploadAttempt("name_resolution")
			metrics.RecordUploadDuration("failure", time.Since(start))
			host := util.NameResolutionHost(err)
			if host == "" {
				host = DefaultAPIHost
			}
			log.Error("asset store DNS lookup failed, possible network, DNS or proxy issue",
				zap.String("host", host), zap.Error(err))
			c.diagnose(ctx, log, host)
			return "", &UploadError{Kind: KindNameResolution, Host: host, Attempts: attempt, Err: err}
		case util.KindContextCanceled:
			metrics.IncrementUploadAttempt("canceled")
			return "", &UploadError{Kind: KindCanceled, Attempts: attempt, Err: err}
		}
		lastErr = err
		log.Warn("asset upload attempt failed",
			zap.Int("attempt", attempt),
			zap.String("error_type", kind),
			zap.Error(err))
		if attempt > c.opts.MaxRetries {
			break
		}
		metrics.IncrementUploadAttempt("retry")
		if err := c.sleep(ctx, time.Duration(attempt)*c.opts.BaseDelay); err != nil {
			metrics.IncrementUploadAttempt("canceled")
			return "", &UploadError{Kind: KindCanceled, Attempts: attempt, Err: err}
		}
	}

	log.Error("exceeded asset upload retries", zap.Int("attempts", c.opts.MaxRetries+1), zap.Error(lastErr))
	metrics.IncrementUploadAttempt("exhausted")
	metrics.RecordUploadDuration("failure", time.Since(start))
	return "", &UploadError{Kind: KindExhausted, Attempts: c.opts.MaxRetries + 1, Err: lastErr}
}

// diagnose resolves host again purely to tell the operator what is wrong.
// Its own outcome never changes the upload result.
func (c *Client) diagnose(ctx context.Context, log *zap.Logger, host string) {
	ips, err := c.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		log.Error("diagnostic DNS check failed",
			zap.String("host", host),
			zap.Error(err),
			zap.Strings("suggestions", []string{
				"ensure the server has internet access",
				fmt.Sprintf("check DNS resolution (nslookup %s or dig %s)", host, host),
				"if behind a proxy, set HTTPS_PROXY / HTTP_PROXY environment variables",
				"ensure a firewall or antivirus is not blocking outbound requests",
			}))
		return
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	log.Error("diagnostic DNS check resolved host", zap.String("host", host), zap.Strings("addresses", addrs))
}

// Delete removes the asset behind a delivery URL. Failures are logged and
// reported as false.
func (c *Client) Delete(ctx context.Context, assetURL string) bool {
	log := logger.WithTrace(ctx, c.logger)
	publicID, err := PublicIDFromURL(assetURL)
	if err != nil {
		log.Warn("cannot derive public id", zap.String("url", assetURL), zap.Error(err))
		return false
	}
	if err := c.store.Destroy(ctx, publicID); err != nil {
		log.Error("asset delete failed", zap.String("public_id", publicID), zap.Error(err))
		return false
	}
	log.Info("asset deleted", zap.String("public_id", publicID))
	return true
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL derives the store's public ID (folder path plus file name
// without extension) from a delivery URL such as
// https://res.cloudinary.com/<cloud>/image/upload/v123/greyinsaat/projects/abc.jpg.
// URLs without an /upload/ segment fall back to the last folder and file name.
func PublicIDFromURL(assetURL string) (string, error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	rest := segments
	for i, s := range segments {
		if s == "upload" {
			rest = segments[i+1:]
			break
		}
	}
	for i, s := range rest {
		if versionSegment.MatchString(s) {
			rest = rest[i+1:]
			break
		}
	}
	if len(rest) == len(segments) && len(rest) > 2 {
		rest = rest[len(rest)-2:]
	}
	if len(rest) < 2 {
		return "", fmt.Errorf("url %q has no folder/file path", assetURL)
	}

	last := rest[len(rest)-1]
	if dot := strings.Index(last, "."); dot >= 0 {
		last = last[:dot]
	}
	if last == "" {
		return "", fmt.Errorf("url %q has an empty file name", assetURL)
	}
	rest[len(rest)-1] = last
	return strings.Join(rest, "/"), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
