package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

type requisitionRepo struct{ h handle }

func (r requisitionRepo) Create(_ context.Context, req *entity.Requisition) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.requisitions {
			if x.v.Folio == req.Folio {
				return domain.ErrDuplicate
			}
		}
		seen := map[string]bool{}
		for _, it := range req.Items {
			if seen[it.ProductID] {
				return domain.ErrDuplicate
			}
			seen[it.ProductID] = true
		}
		head := *req
		head.Items = nil
		put(d, d.requisitions, req.ID, head)
		for _, it := range req.Items {
			it.RequisitionID = req.ID
			put(d, d.reqItems, it.ID, *it)
		}
		return nil
	})
}

func withItems(d *dataset, req *entity.Requisition) *entity.Requisition {
	req.Items = rows(d.reqItems, func(it *entity.RequisitionItem) bool { return it.RequisitionID == req.ID })
	sort.SliceStable(req.Items, func(i, j int) bool { return req.Items[i].Position < req.Items[j].Position })
	return req
}

func (r requisitionRepo) GetByID(_ context.Context, id string) (out *entity.Requisition, err error) {
	err = r.h.read(func(d *dataset) error {
		if out = get(d.requisitions, id); out != nil {
			withItems(d, out)
		}
		return nil
	})
	return
}

func (r requisitionRepo) GetForUpdate(ctx context.Context, id string) (*entity.Requisition, error) {
	return r.GetByID(ctx, id)
}

func (r requisitionRepo) GetByFolio(_ context.Context, folio string) (out *entity.Requisition, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.requisitions, func(x *entity.Requisition) bool { return x.Folio == folio }); len(list) > 0 {
			out = withItems(d, list[0])
		}
		return nil
	})
	return
}

func (r requisitionRepo) Update(_ context.Context, req *entity.Requisition) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.requisitions[req.ID]; !ok {
			return domain.ErrNotFound
		}
		head := *req
		head.Items = nil
		put(d, d.requisitions, req.ID, head)
		return nil
	})
}

func (r requisitionRepo) UpdateItem(_ context.Context, it *entity.RequisitionItem) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.reqItems[it.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.reqItems, it.ID, *it)
		return nil
	})
}

func (r requisitionRepo) List(_ context.Context, f repository.RequisitionFilter) (out []*entity.Requisition, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.requisitions, func(x *entity.Requisition) bool {
			if f.InstitutionID != "" && x.InstitutionID != f.InstitutionID {
				return false
			}
			if f.State != "" && x.State != f.State {
				return false
			}
			if f.From != nil && x.CreatedAt.Before(*f.From) {
				return false
			}
			return f.To == nil || !x.CreatedAt.After(*f.To)
		})
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		out = page(out, f.Limit, f.Offset)
		for _, x := range out {
			withItems(d, x)
		}
		return nil
	})
	return
}

func (r requisitionRepo) FindByObservation(_ context.Context, userID, marker string, from, to time.Time) (out []*entity.Requisition, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.requisitions, func(x *entity.Requisition) bool {
			return x.RequestedBy == userID &&
				strings.Contains(x.Observations, marker) &&
				!x.CreatedAt.Before(from) && !x.CreatedAt.After(to)
		})
		return nil
	})
	return
}

type extFolio struct {
	requisitionID string
	claimedAt     time.Time
}

func (r requisitionRepo) ClaimExternalFolio(_ context.Context, userID, folio, requisitionID string, at, reuseAfter time.Time) (ok bool, err error) {
	err = r.h.write(func(d *dataset) error {
		if _, found := d.requisitions[requisitionID]; !found {
			return domain.ErrNotFound
		}
		key := userID + "\x00" + folio
		if prev, found := d.extFolios[key]; found && !prev.claimedAt.Before(reuseAfter) {
			return nil
		}
		d.extFolios[key] = extFolio{requisitionID: requisitionID, claimedAt: at}
		ok = true
		return nil
	})
	return
}

type folioRepo struct{ h handle }

func (r folioRepo) Next(_ context.Context, prefix string, year int) (n int, err error) {
	err = r.h.write(func(d *dataset) error {
		key := fmt.Sprintf("%s-%04d", prefix, year)
		d.folios[key]++
		n = d.folios[key]
		return nil
	})
	return
}
