package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

type movementRepo struct{ h handle }

func (r movementRepo) Create(_ context.Context, m *entity.Movement) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.lots[m.LotID]; !ok {
			return domain.ErrNotFound
		}
		if _, ok := d.movements[m.ID]; ok {
			return domain.ErrDuplicate
		}
		m.Seq = d.next()
		d.movements[m.ID] = rec[entity.Movement]{v: *m, ord: m.Seq}
		return nil
	})
}

func (r movementRepo) GetByID(_ context.Context, id string) (out *entity.Movement, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.movements, id); return nil })
	return
}

func (r movementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	return r.GetByID(ctx, id)
}

func (r movementRepo) MarkVoided(_ context.Context, id, actor string, at time.Time) error {
	return r.h.write(func(d *dataset) error {
		m := get(d.movements, id)
		if m == nil {
			return domain.ErrNotFound
		}
		m.Voided = true
		m.VoidedAt = &at
		m.VoidedBy = actor
		put(d, d.movements, id, *m)
		return nil
	})
}

func (r movementRepo) List(_ context.Context, f repository.MovementFilter) (out []*entity.Movement, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.movements, func(m *entity.Movement) bool {
			if f.LotID != "" && m.LotID != f.LotID {
				return false
			}
			if len(f.Kinds) > 0 && !containsKind(f.Kinds, m.Kind) {
				return false
			}
			if f.Folio != "" && m.Folio != f.Folio {
				return false
			}
			if f.InstitutionID != "" {
				lot, ok := d.lots[m.LotID]
				if !ok || lot.v.InstitutionID != f.InstitutionID {
					return false
				}
			}
			if f.From != nil && m.CreatedAt.Before(*f.From) {
				return false
			}
			if f.To != nil && m.CreatedAt.After(*f.To) {
				return false
			}
			return f.IncludeVoided || !m.Voided
		})
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].Seq < out[j].Seq
		})
		out = page(out, f.Limit, f.Offset)
		return nil
	})
	return
}

func (r movementRepo) SumExitsByFolio(_ context.Context, folio string) (out map[string]int64, err error) {
	out = map[string]int64{}
	err = r.h.read(func(d *dataset) error {
		for _, m := range d.movements {
			if m.v.Kind == entity.MovementExit && m.v.Folio == folio && !m.v.Voided {
				out[m.v.LotID] += m.v.Quantity
			}
		}
		return nil
	})
	return
}

func containsKind(kinds []entity.MovementKind, k entity.MovementKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
