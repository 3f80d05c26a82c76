package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	rules "github.com/jhoicas/Farmacia-api/internal/domain/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

type lotRepo struct{ h handle }

func (r lotRepo) Create(_ context.Context, lot *entity.Lot) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.lots {
			if x.v.ProductID == lot.ProductID && x.v.InstitutionID == lot.InstitutionID && x.v.LotNumber == lot.LotNumber {
				return domain.ErrDuplicate
			}
		}
		put(d, d.lots, lot.ID, *lot)
		return nil
	})
}

func (r lotRepo) CreateStateChange(_ context.Context, c *entity.LotStateChange) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.lots[c.LotID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.lotStates, c.ID, *c)
		return nil
	})
}

func (r lotRepo) ListStateChanges(_ context.Context, lotID string) (out []*entity.LotStateChange, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.lotStates, func(c *entity.LotStateChange) bool { return c.LotID == lotID })
		return nil
	})
	return
}

func (r lotRepo) Update(_ context.Context, lot *entity.Lot) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.lots[lot.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.lots, lot.ID, *lot)
		return nil
	})
}

func (r lotRepo) GetByID(_ context.Context, id string) (out *entity.Lot, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.lots, id); return nil })
	return
}

// GetForUpdate: las transacciones ya están serializadas.
func (r lotRepo) GetForUpdate(ctx context.Context, id string) (*entity.Lot, error) {
	return r.GetByID(ctx, id)
}

func (r lotRepo) GetByKey(_ context.Context, productID, institutionID, lotNumber string) (out *entity.Lot, err error) {
	err = r.h.read(func(d *dataset) error {
		list := rows(d.lots, func(l *entity.Lot) bool {
			return l.ProductID == productID && l.InstitutionID == institutionID && l.LotNumber == lotNumber
		})
		if len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r lotRepo) ListEligible(_ context.Context, q repository.EligibleLotQuery) (out []*entity.Lot, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.lots, func(l *entity.Lot) bool {
			if l.ProductID != q.ProductID {
				return false
			}
			if q.InstitutionID != "" && l.InstitutionID != q.InstitutionID {
				return false
			}
			if q.ExcludeInstitution != "" && l.InstitutionID == q.ExcludeInstitution {
				return false
			}
			return rules.Eligible(l, q.MinExpiry)
		})
		rules.SortFEFO(out)
		return nil
	})
	return
}

func (r lotRepo) ListEligibleForUpdate(ctx context.Context, q repository.EligibleLotQuery) ([]*entity.Lot, error) {
	return r.ListEligible(ctx, q)
}

func (r lotRepo) List(_ context.Context, f repository.LotFilter) (out []*entity.Lot, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.lots, func(l *entity.Lot) bool {
			if f.ProductID != "" && l.ProductID != f.ProductID {
				return false
			}
			if f.InstitutionID != "" && l.InstitutionID != f.InstitutionID {
				return false
			}
			if len(f.States) > 0 && !containsState(f.States, l.State) {
				return false
			}
			exp := rules.DateOnly(l.ExpiryDate)
			if f.ExpiryFrom != nil && exp.Before(rules.DateOnly(*f.ExpiryFrom)) {
				return false
			}
			if f.ExpiryTo != nil && exp.After(rules.DateOnly(*f.ExpiryTo)) {
				return false
			}
			return !f.OnlyWithStock || l.QuantityAvailable > 0
		})
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].ExpiryDate.Equal(out[j].ExpiryDate) {
				return out[i].ExpiryDate.Before(out[j].ExpiryDate)
			}
			return out[i].ID < out[j].ID
		})
		out = page(out, f.Limit, f.Offset)
		return nil
	})
	return
}

func containsState(states []entity.LotState, s entity.LotState) bool {
	for _, x := range states {
		if x == s {
			return true
		}
	}
	return false
}

type placementRepo struct{ h handle }

func (r placementRepo) Create(_ context.Context, p *entity.BinPlacement) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.lots[p.LotID]; !ok {
			return domain.ErrNotFound
		}
		for _, x := range d.placements {
			if x.v.LotID == p.LotID && x.v.BinID == p.BinID {
				return domain.ErrDuplicate
			}
		}
		put(d, d.placements, p.ID, *p)
		return nil
	})
}

func (r placementRepo) Update(_ context.Context, p *entity.BinPlacement) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.placements[p.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.placements, p.ID, *p)
		return nil
	})
}

func (r placementRepo) Delete(_ context.Context, id string) error {
	return r.h.write(func(d *dataset) error {
		delete(d.placements, id)
		return nil
	})
}

func (r placementRepo) GetByID(_ context.Context, id string) (out *entity.BinPlacement, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.placements, id); return nil })
	return
}

func (r placementRepo) GetForUpdate(ctx context.Context, id string) (*entity.BinPlacement, error) {
	return r.GetByID(ctx, id)
}

func (r placementRepo) Get(_ context.Context, lotID, binID string) (out *entity.BinPlacement, err error) {
	err = r.h.read(func(d *dataset) error {
		list := rows(d.placements, func(p *entity.BinPlacement) bool { return p.LotID == lotID && p.BinID == binID })
		if len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r placementRepo) ListByLot(_ context.Context, lotID string) (out []*entity.BinPlacement, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.placements, func(p *entity.BinPlacement) bool { return p.LotID == lotID })
		return nil
	})
	return
}

func (r placementRepo) ListByLotForUpdate(ctx context.Context, lotID string) ([]*entity.BinPlacement, error) {
	return r.ListByLot(ctx, lotID)
}

func (r placementRepo) ListByBin(_ context.Context, binID string) (out []*entity.BinPlacement, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.placements, func(p *entity.BinPlacement) bool { return p.BinID == binID })
		return nil
	})
	return
}

func (r placementRepo) SumByLot(_ context.Context, lotID string) (sum int64, err error) {
	err = r.h.read(func(d *dataset) error {
		for _, p := range d.placements {
			if p.v.LotID == lotID {
				sum += p.v.Quantity
			}
		}
		return nil
	})
	return
}

// InsertPlacementUnchecked inserta una ubicación sin validar la unicidad (lote, ubicación).
// Simula datos heredados de cargas antiguas para la conciliación.
func (s *Store) InsertPlacementUnchecked(p entity.BinPlacement) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.data, s.data.placements, p.ID, p)
}

type countRepo struct{ h handle }

func (r countRepo) Create(_ context.Context, c *entity.PhysicalCount) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.counts {
			if x.v.PlacementID == c.PlacementID && x.v.State == entity.CountOpen {
				return domain.ErrDuplicate
			}
		}
		put(d, d.counts, c.ID, *c)
		return nil
	})
}

func (r countRepo) Update(_ context.Context, c *entity.PhysicalCount) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.counts[c.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.counts, c.ID, *c)
		return nil
	})
}

func (r countRepo) GetOpenByPlacement(_ context.Context, placementID string) (out *entity.PhysicalCount, err error) {
	err = r.h.read(func(d *dataset) error {
		list := rows(d.counts, func(c *entity.PhysicalCount) bool {
			return c.PlacementID == placementID && c.State == entity.CountOpen
		})
		if len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r countRepo) ListByLot(_ context.Context, lotID string) (out []*entity.PhysicalCount, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.counts, func(c *entity.PhysicalCount) bool { return c.LotID == lotID })
		return nil
	})
	return
}

type placementAuditRepo struct{ h handle }

func (r placementAuditRepo) PlacementSums(_ context.Context) (out map[string]int64, err error) {
	out = map[string]int64{}
	err = r.h.read(func(d *dataset) error {
		for _, p := range d.placements {
			out[p.v.LotID] += p.v.Quantity
		}
		return nil
	})
	return
}

func (r placementAuditRepo) FindDuplicatePlacements(_ context.Context) (out []repository.DuplicatePlacement, err error) {
	err = r.h.read(func(d *dataset) error {
		groups := map[[2]string][]string{}
		var keys [][2]string
		for _, p := range rows(d.placements, nil) {
			k := [2]string{p.LotID, p.BinID}
			if _, ok := groups[k]; !ok {
				keys = append(keys, k)
			}
			groups[k] = append(groups[k], p.ID)
		}
		for _, k := range keys {
			if ids := groups[k]; len(ids) > 1 {
				out = append(out, repository.DuplicatePlacement{LotID: k[0], BinID: k[1], PlacementIDs: ids})
			}
		}
		return nil
	})
	return
}
