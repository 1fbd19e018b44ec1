package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/emsd/school-billing-api/pkg/jobs"
	"github.com/emsd/school-billing-api/pkg/storage"
)

const archiveJobReceipt = "receipt"

type receiptSource interface {
	PaymentReceipt(ctx context.Context, paymentID int64) ([]byte, string, error)
}

// ArchiveService renders payment receipts in the background and keeps
// them on disk so they can be re-downloaded through signed links.
type ArchiveService struct {
	exports   receiptSource
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	retention time.Duration
	logger    *zap.Logger

	cancel context.CancelFunc
}

// ArchiveOptions tunes the worker pool and link lifetime.
type ArchiveOptions struct {
	Workers   int
	LinkTTL   time.Duration
	Retention time.Duration
	Secret    string
}

func NewArchiveService(exports receiptSource, store *storage.LocalStorage, opts ArchiveOptions, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}

	s := &ArchiveService{
		exports:   exports,
		store:     store,
		signer:    storage.NewSignedURLSigner(opts.Secret, opts.LinkTTL),
		retention: opts.Retention,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("receipt-archive", s.handleTask, jobs.Options{
		Workers: opts.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the archive workers and the retention sweeper.
func (s *ArchiveService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)
	go s.sweep(ctx)
}

// Stop drains the workers.
func (s *ArchiveService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Stop()
}

// EnqueueReceipt schedules archival of the payment's receipt. Failures
// are logged and never surfaced to the payment flow.
func (s *ArchiveService) EnqueueReceipt(paymentID int64) {
	err := s.queue.Enqueue(jobs.Task{
		ID:      strconv.FormatInt(paymentID, 10),
		Kind:    archiveJobReceipt,
		Payload: paymentID,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue receipt archival", zap.Int64("payment_id", paymentID), zap.Error(err))
	}
}

// ReceiptLink returns a signed token for downloading the archived
// receipt, rendering and storing it first if the file is missing.
func (s *ArchiveService) ReceiptLink(ctx context.Context, paymentID int64) (string, time.Time, error) {
	relPath, err := s.ensureArchived(ctx, paymentID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.signer.Generate(strconv.FormatInt(paymentID, 10), relPath)
}

// Open validates a signed token and returns the archived file along
// with its download filename.
func (s *ArchiveService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", err
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", err
	}
	return file, path.Base(relPath), nil
}

func (s *ArchiveService) handleTask(ctx context.Context, task jobs.Task) error {
	paymentID, ok := task.Payload.(int64)
	if !ok {
		return fmt.Errorf("unexpected payload for task %s", task.ID)
	}
	relPath, err := s.ensureArchived(ctx, paymentID)
	if err != nil {
		return err
	}
	s.logger.Debug("receipt archived", zap.Int64("payment_id", paymentID), zap.String("path", relPath))
	return nil
}

func (s *ArchiveService) ensureArchived(ctx context.Context, paymentID int64) (string, error) {
	data, filename, err := s.exports.PaymentReceipt(ctx, paymentID)
	if err != nil {
		return "", err
	}
	relPath := path.Join("receipts", filename)
	if file, err := s.store.Open(relPath); err == nil {
		file.Close() //nolint:errcheck
		return relPath, nil
	}
	if _, err := s.store.Save(relPath, data); err != nil {
		return "", err
	}
	return relPath, nil
}

func (s *ArchiveService) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.store.CleanupOlderThan(s.retention)
			if err != nil {
				s.logger.Warn("archive cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("archive cleanup removed files", zap.Int("count", len(deleted)))
			}
		}
	}
}
