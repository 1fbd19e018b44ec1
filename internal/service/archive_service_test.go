package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsd/school-billing-api/pkg/storage"
)

type fakeReceiptSource struct {
	data     []byte
	filename string
	calls    int
}

func (f *fakeReceiptSource) PaymentReceipt(ctx context.Context, paymentID int64) ([]byte, string, error) {
	f.calls++
	return f.data, f.filename, nil
}

func newArchiveServiceForTest(t *testing.T, source *fakeReceiptSource) *ArchiveService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewArchiveService(source, store, ArchiveOptions{
		Workers: 1,
		LinkTTL: time.Minute,
		Secret:  "test-secret",
	}, nil)
}

func TestArchiveServiceReceiptLinkRoundTrip(t *testing.T) {
	source := &fakeReceiptSource{data: []byte("%PDF-1.4 receipt"), filename: "receipt-2026-000001.pdf"}
	svc := newArchiveServiceForTest(t, source)

	token, expiresAt, err := svc.ReceiptLink(context.Background(), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	file, filename, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "receipt-2026-000001.pdf", filename)
}

func TestArchiveServiceOpenRejectsTamperedToken(t *testing.T) {
	source := &fakeReceiptSource{data: []byte("%PDF-1.4 receipt"), filename: "receipt-2026-000002.pdf"}
	svc := newArchiveServiceForTest(t, source)

	token, _, err := svc.ReceiptLink(context.Background(), 8)
	require.NoError(t, err)

	_, _, err = svc.Open(token + "x")
	require.Error(t, err)
}

func TestArchiveServiceEnqueueProcessesReceipt(t *testing.T) {
	source := &fakeReceiptSource{data: []byte("%PDF-1.4 receipt"), filename: "receipt-2026-000003.pdf"}
	svc := newArchiveServiceForTest(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.EnqueueReceipt(9)

	require.Eventually(t, func() bool {
		return source.calls > 0
	}, time.Second, 10*time.Millisecond)
}
