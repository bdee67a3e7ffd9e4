package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx, got %v", tx)
	}
}

func TestInTx_ReusesExistingTx(t *testing.T) {
	// A context that already carries a tx must not touch the pool.
	var tx fakeTx
	ctx := WithTx(context.Background(), &tx)
	called := false
	err := InTx(ctx, nil, func(inner context.Context) error {
		called = true
		if TxFromContext(inner) != &tx {
			t.Error("expected the outer tx to be passed through")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to run")
	}
}

type fakeTx struct{ pgx.Tx }
