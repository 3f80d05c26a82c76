// Package memory implementa todos los repositorios y el TxRunner sobre mapas en
// memoria. Las transacciones se serializan y trabajan sobre una copia del estado
// que sólo se publica si fn termina sin error.
package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

type rec[T any] struct {
	v   T
	ord int64 // orden de inserción
}

type table[T any] map[string]rec[T]

type dataset struct {
	seq int64

	products       table[entity.Product]
	institutions   table[entity.Institution]
	warehouses     table[entity.Warehouse]
	bins           table[entity.Bin]
	suppliers      table[entity.Supplier]
	orders         table[entity.SupplyOrder]
	lots           table[entity.Lot]
	lotStates      table[entity.LotStateChange]
	placements     table[entity.BinPlacement]
	counts         table[entity.PhysicalCount]
	movements      table[entity.Movement]
	requisitions   table[entity.Requisition]
	reqItems       table[entity.RequisitionItem]
	folios         map[string]int
	extFolios      map[string]extFolio
	proposals      table[entity.Proposal]
	proposalItems  table[entity.ProposalItem]
	assignments    table[entity.LotAssignment]
	proposalLogs   table[entity.ProposalLog]
	errorLogs      table[entity.ErrorLog]
	reconciliation table[entity.ReconciliationEntry]
}

func newDataset() *dataset {
	return &dataset{
		products:       table[entity.Product]{},
		institutions:   table[entity.Institution]{},
		warehouses:     table[entity.Warehouse]{},
		bins:           table[entity.Bin]{},
		suppliers:      table[entity.Supplier]{},
		orders:         table[entity.SupplyOrder]{},
		lots:           table[entity.Lot]{},
		lotStates:      table[entity.LotStateChange]{},
		placements:     table[entity.BinPlacement]{},
		counts:         table[entity.PhysicalCount]{},
		movements:      table[entity.Movement]{},
		requisitions:   table[entity.Requisition]{},
		reqItems:       table[entity.RequisitionItem]{},
		folios:         map[string]int{},
		extFolios:      map[string]extFolio{},
		proposals:      table[entity.Proposal]{},
		proposalItems:  table[entity.ProposalItem]{},
		assignments:    table[entity.LotAssignment]{},
		proposalLogs:   table[entity.ProposalLog]{},
		errorLogs:      table[entity.ErrorLog]{},
		reconciliation: table[entity.ReconciliationEntry]{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		seq:            d.seq,
		products:       maps.Clone(d.products),
		institutions:   maps.Clone(d.institutions),
		warehouses:     maps.Clone(d.warehouses),
		bins:           maps.Clone(d.bins),
		suppliers:      maps.Clone(d.suppliers),
		orders:         maps.Clone(d.orders),
		lots:           maps.Clone(d.lots),
		lotStates:      maps.Clone(d.lotStates),
		placements:     maps.Clone(d.placements),
		counts:         maps.Clone(d.counts),
		movements:      maps.Clone(d.movements),
		requisitions:   maps.Clone(d.requisitions),
		reqItems:       maps.Clone(d.reqItems),
		folios:         maps.Clone(d.folios),
		extFolios:      maps.Clone(d.extFolios),
		proposals:      maps.Clone(d.proposals),
		proposalItems:  maps.Clone(d.proposalItems),
		assignments:    maps.Clone(d.assignments),
		proposalLogs:   maps.Clone(d.proposalLogs),
		errorLogs:      maps.Clone(d.errorLogs),
		reconciliation: maps.Clone(d.reconciliation),
	}
}

func (d *dataset) next() int64 {
	d.seq++
	return d.seq
}

// Store base de datos en memoria (pruebas y ejecución local sin PostgreSQL).
type Store struct {
	txMu sync.Mutex   // serializa escrituras: equivale al bloqueo de filas
	mu   sync.RWMutex // protege el estado publicado
	data *dataset
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repos repositorios en modo autocommit sobre el estado publicado.
// No deben usarse dentro de Run: ahí se usan los repositorios recibidos por fn.
func (s *Store) Repos() repository.Repos {
	return reposFor(handle{s: s})
}

// Run ejecuta fn sobre una copia del estado y la publica sólo si fn no falla.
func (s *Store) Run(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(reposFor(handle{s: s, d: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// RunReadOnly ejecuta fn sobre una copia del estado publicado que nunca se publica.
// Todas las lecturas de fn ven el mismo estado; las escrituras fallan.
func (s *Store) RunReadOnly(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snap := s.data.clone()
	s.mu.RUnlock()
	return fn(reposFor(handle{s: s, d: snap, ro: true}))
}

var errReadOnly = errors.New("memory: escritura en transacción de sólo lectura")

// handle con d != nil opera sobre la copia de una transacción abierta.
type handle struct {
	s  *Store
	d  *dataset
	ro bool
}

func (h handle) read(fn func(d *dataset) error) error {
	if h.d != nil {
		return fn(h.d)
	}
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return fn(h.s.data)
}

// write en modo autocommit trabaja sobre una copia para que un error no deje
// escrituras a medias.
func (h handle) write(fn func(d *dataset) error) error {
	if h.ro {
		return errReadOnly
	}
	if h.d != nil {
		return fn(h.d)
	}
	h.s.txMu.Lock()
	defer h.s.txMu.Unlock()
	h.s.mu.RLock()
	work := h.s.data.clone()
	h.s.mu.RUnlock()
	if err := fn(work); err != nil {
		return err
	}
	h.s.mu.Lock()
	h.s.data = work
	h.s.mu.Unlock()
	return nil
}

func reposFor(h handle) repository.Repos {
	return repository.Repos{
		Products:       productRepo{h},
		Institutions:   institutionRepo{h},
		Warehouses:     warehouseRepo{h},
		Bins:           binRepo{h},
		Suppliers:      supplierRepo{h},
		Lots:           lotRepo{h},
		Placements:     placementRepo{h},
		Counts:         countRepo{h},
		Movements:      movementRepo{h},
		Requisitions:   requisitionRepo{h},
		Folios:         folioRepo{h},
		Proposals:      proposalRepo{h},
		ProposalLogs:   proposalLogRepo{h},
		ErrorLogs:      errorLogRepo{h},
		Reconciliation: reconciliationRepo{h},
		PlacementAudit: placementAuditRepo{h},
	}
}

// rows devuelve copias de los registros que cumplen keep, en orden de inserción.
func rows[T any](t table[T], keep func(*T) bool) []*T {
	type pair struct {
		v   T
		ord int64
	}
	list := make([]pair, 0, len(t))
	for _, r := range t {
		v := r.v
		if keep == nil || keep(&v) {
			list = append(list, pair{v: v, ord: r.ord})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ord < list[j].ord })
	out := make([]*T, len(list))
	for i := range list {
		v := list[i].v
		out[i] = &v
	}
	return out
}

func get[T any](t table[T], id string) *T {
	r, ok := t[id]
	if !ok {
		return nil
	}
	v := r.v
	return &v
}

func put[T any](d *dataset, t table[T], id string, v T) {
	if r, ok := t[id]; ok {
		t[id] = rec[T]{v: v, ord: r.ord}
		return
	}
	t[id] = rec[T]{v: v, ord: d.next()}
}

func page[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return []*T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
