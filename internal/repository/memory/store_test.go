package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/hospitalops/internal/models"
	"github.com/stretchr/testify/require"
)

func newNode(tenantID uuid.UUID, name string) *models.OrgNode {
	return &models.OrgNode{ID: uuid.New(), TenantID: tenantID, Type: models.NodeTypeDepartment, Name: name, IsActive: true}
}

func TestStore_FailedTxDoesNotUndoConcurrentTx(t *testing.T) {
	store := New()
	tenantID := uuid.New()
	ctx := context.Background()
	boom := errors.New("boom")

	failing := newNode(tenantID, "Radiology")
	committed := newNode(tenantID, "Cardiology")

	started := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- store.InTx(ctx, func(txCtx context.Context) error {
			if err := store.Insert(txCtx, failing); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- store.InTx(ctx, func(txCtx context.Context) error {
			return store.Insert(txCtx, committed)
		})
	}()

	close(release)
	require.ErrorIs(t, <-firstDone, boom)
	require.NoError(t, <-secondDone)

	_, ok := store.Node(failing.ID)
	require.False(t, ok)
	_, ok = store.Node(committed.ID)
	require.True(t, ok)
}

func TestStore_NestedTxJoinsOuter(t *testing.T) {
	store := New()
	tenantID := uuid.New()
	ctx := context.Background()
	boom := errors.New("boom")

	inner := newNode(tenantID, "ICU")
	err := store.InTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, store.InTx(txCtx, func(innerCtx context.Context) error {
			return store.Insert(innerCtx, inner)
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := store.Node(inner.ID)
	require.False(t, ok)
}
