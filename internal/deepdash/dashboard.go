package deepdash

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mlsec-tools/deepdash/internal/deepdash/apis"
	"github.com/mlsec-tools/deepdash/internal/notifications"
	"github.com/mlsec-tools/deepdash/internal/storage"
	"github.com/mlsec-tools/deepdash/internal/storage/models"
)

// timeLayout is the display format for object and record timestamps.
const timeLayout = "2006-01-02 15:04:05"

// DashboardConfig holds the collaborators of the dashboard.
type DashboardConfig struct {
	Detector       apis.Detector
	Store          storage.Store
	Notifier       *notifications.Notifier
	Prefix         string
	ExportFileName string
}

// Dashboard orchestrates the four operator flows: submission, listing,
// deletion and export. Flows are independent; a failure in one never stops
// the others.
type Dashboard struct {
	Config DashboardConfig
	Logger *logrus.Logger
}

// NewDashboard initializes a new Dashboard.
func NewDashboard(config DashboardConfig, logger *logrus.Logger) *Dashboard {
	return &Dashboard{
		Config: config,
		Logger: logger,
	}
}

// Detect submits a file URL to the remote detection service. When a
// notifier is configured and the verdict is not "real", a notification is
// sent; notification failures are logged, never surfaced.
func (d *Dashboard) Detect(ctx context.Context, fileURL string) (*models.DetectionResult, error) {
	result, err := d.Config.Detector.Detect(ctx, fileURL)
	if err != nil {
		return nil, err
	}

	d.Logger.WithFields(logrus.Fields{
		"file_url":   fileURL,
		"verdict":    result.Verdict,
		"confidence": result.Confidence,
	}).Info("Detection completed")

	if d.Config.Notifier != nil && result.Verdict != "" && !strings.EqualFold(result.Verdict, "real") {
		d.Config.Notifier.Send(
			"Deepfake detected",
			fmt.Sprintf("%s flagged as %s (confidence: %v)", fileURL, result.Verdict, result.Confidence),
		)
	}

	return result, nil
}

// ListUploads enumerates the upload bucket and derives the display fields:
// key as-is, size in kilobytes rounded to two decimals, last-modified time
// formatted in UTC.
func (d *Dashboard) ListUploads(ctx context.Context) ([]models.UploadEntry, error) {
	objects, err := d.Config.Store.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}

	entries := make([]models.UploadEntry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, models.UploadEntry{
			Key:          obj.Key,
			SizeKB:       math.Round(float64(obj.Size)/1024*100) / 100,
			LastModified: obj.LastModified.UTC().Format(timeLayout),
		})
	}
	return entries, nil
}

// DeleteUpload removes one object and re-fetches an authoritative listing,
// so the caller renders a view that no longer contains the deleted key.
// A nil slice with a nil error means the delete succeeded but the refresh
// did not; the caller should tell the operator to refresh manually.
func (d *Dashboard) DeleteUpload(ctx context.Context, key string) ([]models.UploadEntry, error) {
	if err := d.Config.Store.DeleteObject(ctx, key); err != nil {
		return nil, err
	}
	d.Logger.WithField("key", key).Info("Deleted upload")

	entries, err := d.ListUploads(ctx)
	if err != nil {
		// The delete itself succeeded; the caller still gets the success
		// notice but must refresh manually for an up-to-date listing.
		d.Logger.WithError(err).Warn("Failed to refresh listing after delete")
		return nil, nil
	}
	return entries, nil
}

// ExportCSV scans the detection table, rewrites each record's timestamp
// attribute as a formatted string and serializes everything to CSV. The
// returned count is the number of data rows; a zero count with a nil error
// means there is nothing to export.
func (d *Dashboard) ExportCSV(ctx context.Context) ([]byte, int, error) {
	records, err := d.Config.Store.ScanRecords(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan detection records: %w", err)
	}
	if len(records) == 0 {
		return nil, 0, nil
	}

	if err := normalizeTimestamps(records); err != nil {
		return nil, 0, err
	}

	data, err := buildCSV(records)
	if err != nil {
		return nil, 0, err
	}
	return data, len(records), nil
}

// Stats gathers the upload and record counts concurrently.
func (d *Dashboard) Stats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		objects, err := d.Config.Store.ListObjects(gctx)
		if err != nil {
			return fmt.Errorf("failed to count uploads: %w", err)
		}
		stats.UploadCount = len(objects)
		return nil
	})
	g.Go(func() error {
		records, err := d.Config.Store.ScanRecords(gctx)
		if err != nil {
			return fmt.Errorf("failed to count detection records: %w", err)
		}
		stats.RecordCount = len(records)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
