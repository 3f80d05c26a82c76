package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

type errorLogRepo struct{ h handle }

func (r errorLogRepo) Create(_ context.Context, e *entity.ErrorLog) error {
	return r.h.write(func(d *dataset) error {
		put(d, d.errorLogs, e.ID, *e)
		return nil
	})
}

func (r errorLogRepo) MarkAlertSent(_ context.Context, ids []string) error {
	return r.h.write(func(d *dataset) error {
		for _, id := range ids {
			if e := get(d.errorLogs, id); e != nil {
				e.AlertSent = true
				put(d, d.errorLogs, id, *e)
			}
		}
		return nil
	})
}

func (r errorLogRepo) List(_ context.Context, f repository.ErrorLogFilter) (out []*entity.ErrorLog, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.errorLogs, func(e *entity.ErrorLog) bool {
			if f.Kind != "" && e.Kind != f.Kind {
				return false
			}
			if f.InstitutionID != "" && e.InstitutionID != f.InstitutionID {
				return false
			}
			if f.UserID != "" && e.UserID != f.UserID {
				return false
			}
			if f.From != nil && e.CreatedAt.Before(*f.From) {
				return false
			}
			if f.To != nil && e.CreatedAt.After(*f.To) {
				return false
			}
			return !f.PendingAlert || !e.AlertSent
		})
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		out = page(out, f.Limit, f.Offset)
		return nil
	})
	return
}

type reconciliationRepo struct{ h handle }

func (r reconciliationRepo) Create(_ context.Context, e *entity.ReconciliationEntry) error {
	return r.h.write(func(d *dataset) error {
		put(d, d.reconciliation, e.ID, *e)
		return nil
	})
}

func (r reconciliationRepo) List(_ context.Context, runID string, limit, offset int) (out []*entity.ReconciliationEntry, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.reconciliation, func(e *entity.ReconciliationEntry) bool { return runID == "" || e.RunID == runID })
		out = page(out, limit, offset)
		return nil
	})
	return
}
