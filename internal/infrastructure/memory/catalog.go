package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

type productRepo struct{ h handle }

func (r productRepo) Create(_ context.Context, p *entity.Product) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.products {
			if x.v.Key == p.Key {
				return domain.ErrDuplicate
			}
		}
		put(d, d.products, p.ID, *p)
		return nil
	})
}

func (r productRepo) Update(_ context.Context, p *entity.Product) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.products[p.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.products, p.ID, *p)
		return nil
	})
}

func (r productRepo) GetByID(_ context.Context, id string) (out *entity.Product, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.products, id); return nil })
	return
}

func (r productRepo) GetByKey(_ context.Context, key string) (out *entity.Product, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.products, func(p *entity.Product) bool { return p.Key == key }); len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r productRepo) List(_ context.Context, search string, limit, offset int) (out []*entity.Product, err error) {
	search = strings.ToLower(search)
	err = r.h.read(func(d *dataset) error {
		out = rows(d.products, func(p *entity.Product) bool {
			return search == "" ||
				strings.Contains(strings.ToLower(p.Key), search) ||
				strings.Contains(strings.ToLower(p.Description), search)
		})
		sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		out = page(out, limit, offset)
		return nil
	})
	return
}

type institutionRepo struct{ h handle }

func (r institutionRepo) Create(_ context.Context, inst *entity.Institution) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.institutions {
			if x.v.Clue == inst.Clue {
				return domain.ErrDuplicate
			}
		}
		put(d, d.institutions, inst.ID, *inst)
		return nil
	})
}

func (r institutionRepo) GetByID(_ context.Context, id string) (out *entity.Institution, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.institutions, id); return nil })
	return
}

func (r institutionRepo) GetByClue(_ context.Context, clue string) (out *entity.Institution, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.institutions, func(i *entity.Institution) bool { return i.Clue == clue }); len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r institutionRepo) List(_ context.Context, limit, offset int) (out []*entity.Institution, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.institutions, nil)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Clue < out[j].Clue })
		out = page(out, limit, offset)
		return nil
	})
	return
}

type warehouseRepo struct{ h handle }

func (r warehouseRepo) Create(_ context.Context, w *entity.Warehouse) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.warehouses {
			if x.v.Code == w.Code {
				return domain.ErrDuplicate
			}
		}
		put(d, d.warehouses, w.ID, *w)
		return nil
	})
}

func (r warehouseRepo) GetByID(_ context.Context, id string) (out *entity.Warehouse, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.warehouses, id); return nil })
	return
}

func (r warehouseRepo) GetByCode(_ context.Context, code string) (out *entity.Warehouse, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.warehouses, func(w *entity.Warehouse) bool { return w.Code == code }); len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r warehouseRepo) ListByInstitution(_ context.Context, institutionID string) (out []*entity.Warehouse, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.warehouses, func(w *entity.Warehouse) bool { return w.InstitutionID == institutionID })
		sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
		return nil
	})
	return
}

type binRepo struct{ h handle }

func (r binRepo) Create(_ context.Context, b *entity.Bin) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.bins {
			if x.v.WarehouseID == b.WarehouseID && x.v.Code == b.Code {
				return domain.ErrDuplicate
			}
		}
		put(d, d.bins, b.ID, *b)
		return nil
	})
}

func (r binRepo) GetByID(_ context.Context, id string) (out *entity.Bin, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.bins, id); return nil })
	return
}

func (r binRepo) GetByCode(_ context.Context, warehouseID, code string) (out *entity.Bin, err error) {
	err = r.h.read(func(d *dataset) error {
		list := rows(d.bins, func(b *entity.Bin) bool { return b.WarehouseID == warehouseID && b.Code == code })
		if len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r binRepo) ListByWarehouse(_ context.Context, warehouseID string) (out []*entity.Bin, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.bins, func(b *entity.Bin) bool { return b.WarehouseID == warehouseID })
		sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
		return nil
	})
	return
}

func (r binRepo) UpdateState(_ context.Context, id, state string) error {
	return r.h.write(func(d *dataset) error {
		b := get(d.bins, id)
		if b == nil {
			return domain.ErrNotFound
		}
		b.State = state
		put(d, d.bins, id, *b)
		return nil
	})
}

type supplierRepo struct{ h handle }

func (r supplierRepo) Create(_ context.Context, s *entity.Supplier) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.suppliers {
			if x.v.RFC == s.RFC {
				return domain.ErrDuplicate
			}
		}
		put(d, d.suppliers, s.ID, *s)
		return nil
	})
}

func (r supplierRepo) GetByID(_ context.Context, id string) (out *entity.Supplier, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.suppliers, id); return nil })
	return
}

func (r supplierRepo) GetByRFC(_ context.Context, rfc string) (out *entity.Supplier, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.suppliers, func(s *entity.Supplier) bool { return s.RFC == rfc }); len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r supplierRepo) List(_ context.Context, limit, offset int) (out []*entity.Supplier, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.suppliers, nil)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		out = page(out, limit, offset)
		return nil
	})
	return
}

func (r supplierRepo) CreateOrder(_ context.Context, o *entity.SupplyOrder) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.suppliers[o.SupplierID]; !ok {
			return domain.ErrNotFound
		}
		for _, x := range d.orders {
			if x.v.OrderNumber == o.OrderNumber {
				return domain.ErrDuplicate
			}
		}
		put(d, d.orders, o.ID, *o)
		return nil
	})
}

func (r supplierRepo) GetOrderByID(_ context.Context, id string) (out *entity.SupplyOrder, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.orders, id); return nil })
	return
}

func (r supplierRepo) GetOrderByNumber(_ context.Context, number string) (out *entity.SupplyOrder, err error) {
	err = r.h.read(func(d *dataset) error {
		if list := rows(d.orders, func(o *entity.SupplyOrder) bool { return o.OrderNumber == number }); len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}
