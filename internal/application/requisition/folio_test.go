package requisition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
)

func TestFolioService_ReiniciaCadaAnio(t *testing.T) {
	store := memory.NewStore()
	svc := requisition.NewFolioService("")
	ctx := context.Background()

	next := func(at time.Time) string {
		var out string
		require.NoError(t, store.Run(ctx, func(r repository.Repos) error {
			var err error
			out, err = svc.NextTx(ctx, r, at)
			return err
		}))
		return out
	}

	assert.Equal(t, "IB-2025-000001", next(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "IB-2025-000002", next(time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC)))
	assert.Equal(t, "IB-2026-000001", next(time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)))
}

func TestFolioService_RevertidoNoConsume(t *testing.T) {
	store := memory.NewStore()
	svc := requisition.NewFolioService("IB")
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := store.Run(ctx, func(r repository.Repos) error {
		_, err := svc.NextTx(ctx, r, at)
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var got string
	require.NoError(t, store.Run(ctx, func(r repository.Repos) error {
		var err error
		got, err = svc.NextTx(ctx, r, at)
		return err
	}))
	assert.Equal(t, "IB-2025-000001", got)
}
