package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción READ COMMITTED, ejecuta fn con repos atados a la tx y
// hace Commit o Rollback. Los bloqueos de fila se toman con SELECT … FOR UPDATE
// desde los repositorios (GetForUpdate, ListEligibleForUpdate).
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunReadOnly ejecuta fn en una transacción REPEATABLE READ de sólo lectura: todas
// las consultas de fn ven la instantánea tomada en la primera.
func (r *TxRunner) RunReadOnly(ctx context.Context, fn func(repos repository.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// NewRepos arma todos los repositorios sobre q (pool para lecturas y escrituras
// autocommit, tx dentro de Run).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Products:       NewProductRepository(q),
		Institutions:   NewInstitutionRepository(q),
		Warehouses:     NewWarehouseRepository(q),
		Bins:           NewBinRepository(q),
		Suppliers:      NewSupplierRepository(q),
		Lots:           NewLotRepository(q),
		Placements:     NewPlacementRepository(q),
		Counts:         NewCountRepository(q),
		Movements:      NewMovementRepository(q),
		Requisitions:   NewRequisitionRepository(q),
		Folios:         NewFolioRepository(q),
		Proposals:      NewProposalRepository(q),
		ProposalLogs:   NewProposalLogRepository(q),
		ErrorLogs:      NewErrorLogRepository(q),
		Reconciliation: NewReconciliationRepository(q),
		PlacementAudit: NewPlacementAuditRepository(q),
	}
}
