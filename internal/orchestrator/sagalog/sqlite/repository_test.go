package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/delivery-sagas/internal/orchestrator/sagalog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "sagalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSaveAndGetLatest(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := []*sagalog.Entry{
		{SagaID: "ord-1", State: "VALIDATING_MERCHANT", MessageKind: "SubmitOrder", RecordedAt: base},
		{SagaID: "ord-1", State: "PROCESSING_PAYMENT", MessageKind: "MerchantValidationResult", RecordedAt: base.Add(time.Second)},
		{SagaID: "ord-1", State: "EXECUTING_COMPENSATION", MessageKind: "PaymentResult", FailureReason: "payment provider timed out", RecordedAt: base.Add(2 * time.Second)},
		{SagaID: "ord-2", State: "VALIDATING_MERCHANT", MessageKind: "SubmitOrder", RecordedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Save(ctx, e))
	}

	latest, err := repo.GetLatest(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "EXECUTING_COMPENSATION", latest.State)
	assert.Equal(t, "PaymentResult", latest.MessageKind)
	assert.Equal(t, "payment provider timed out", latest.FailureReason)
	assert.True(t, latest.RecordedAt.Equal(base.Add(2*time.Second)))
}

func TestGetLatestUnknownSaga(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.GetLatest(context.Background(), "ghost")
	assert.Error(t, err)
}
