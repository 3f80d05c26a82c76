package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

type proposalRepo struct{ h handle }

// Create respeta el índice único parcial: una sola propuesta no terminal por solicitud.
func (r proposalRepo) Create(_ context.Context, p *entity.Proposal) error {
	return r.h.write(func(d *dataset) error {
		for _, x := range d.proposals {
			if x.v.RequisitionID == p.RequisitionID && !entity.ProposalTerminal(x.v.State) {
				return domain.ErrDuplicate
			}
		}
		put(d, d.proposals, p.ID, *p)
		return nil
	})
}

func (r proposalRepo) Update(_ context.Context, p *entity.Proposal) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.proposals[p.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.proposals, p.ID, *p)
		return nil
	})
}

func (r proposalRepo) GetByID(_ context.Context, id string) (out *entity.Proposal, err error) {
	err = r.h.read(func(d *dataset) error { out = get(d.proposals, id); return nil })
	return
}

func (r proposalRepo) GetForUpdate(ctx context.Context, id string) (*entity.Proposal, error) {
	return r.GetByID(ctx, id)
}

func (r proposalRepo) GetActiveByRequisition(_ context.Context, requisitionID string) (out *entity.Proposal, err error) {
	err = r.h.read(func(d *dataset) error {
		list := rows(d.proposals, func(p *entity.Proposal) bool {
			return p.RequisitionID == requisitionID && !entity.ProposalTerminal(p.State)
		})
		if len(list) > 0 {
			out = list[0]
		}
		return nil
	})
	return
}

func (r proposalRepo) List(_ context.Context, f repository.ProposalFilter) (out []*entity.Proposal, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.proposals, func(p *entity.Proposal) bool {
			if f.RequisitionID != "" && p.RequisitionID != f.RequisitionID {
				return false
			}
			if len(f.States) == 0 {
				return true
			}
			for _, s := range f.States {
				if s == p.State {
					return true
				}
			}
			return false
		})
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		out = page(out, f.Limit, f.Offset)
		return nil
	})
	return
}

func (r proposalRepo) CreateItem(_ context.Context, it *entity.ProposalItem) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.proposals[it.ProposalID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.proposalItems, it.ID, *it)
		return nil
	})
}

func (r proposalRepo) UpdateItem(_ context.Context, it *entity.ProposalItem) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.proposalItems[it.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.proposalItems, it.ID, *it)
		return nil
	})
}

func (r proposalRepo) ListItems(_ context.Context, proposalID string) (out []*entity.ProposalItem, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.proposalItems, func(it *entity.ProposalItem) bool { return it.ProposalID == proposalID })
		return nil
	})
	return
}

func (r proposalRepo) DeleteItems(_ context.Context, proposalID string) error {
	return r.h.write(func(d *dataset) error {
		for id, it := range d.proposalItems {
			if it.v.ProposalID == proposalID {
				delete(d.proposalItems, id)
			}
		}
		return nil
	})
}

func (r proposalRepo) CreateAssignment(_ context.Context, a *entity.LotAssignment) error {
	return r.h.write(func(d *dataset) error {
		if a.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		if _, ok := d.proposalItems[a.ProposalItemID]; !ok {
			return domain.ErrNotFound
		}
		for _, rc := range d.assignments {
			if rc.v.ProposalItemID == a.ProposalItemID && rc.v.PlacementID == a.PlacementID {
				return domain.ErrDuplicate
			}
		}
		put(d, d.assignments, a.ID, *a)
		return nil
	})
}

// InsertAssignmentUnchecked inserta una asignación sin validar la unicidad
// (renglón, ubicación). Simula filas anteriores al índice único.
func (s *Store) InsertAssignmentUnchecked(a entity.LotAssignment) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.data, s.data.assignments, a.ID, a)
}

func (r proposalRepo) UpdateAssignment(_ context.Context, a *entity.LotAssignment) error {
	return r.h.write(func(d *dataset) error {
		if _, ok := d.assignments[a.ID]; !ok {
			return domain.ErrNotFound
		}
		put(d, d.assignments, a.ID, *a)
		return nil
	})
}

func (r proposalRepo) DeleteAssignment(_ context.Context, id string) error {
	return r.h.write(func(d *dataset) error {
		delete(d.assignments, id)
		return nil
	})
}

func (r proposalRepo) DeleteAssignments(_ context.Context, proposalID string) error {
	return r.h.write(func(d *dataset) error {
		for id, a := range d.assignments {
			if a.v.ProposalID == proposalID {
				delete(d.assignments, id)
			}
		}
		return nil
	})
}

func (r proposalRepo) ListAssignments(_ context.Context, proposalID string) (out []*entity.LotAssignment, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.assignments, func(a *entity.LotAssignment) bool { return a.ProposalID == proposalID })
		return nil
	})
	return
}

func (r proposalRepo) PendingReservedByLot(_ context.Context) (out map[string]int64, err error) {
	out = map[string]int64{}
	err = r.h.read(func(d *dataset) error {
		for _, a := range d.assignments {
			p, ok := d.proposals[a.v.ProposalID]
			if !ok || a.v.Dispatched || entity.ProposalTerminal(p.v.State) {
				continue
			}
			out[a.v.LotID] += a.v.Quantity
		}
		return nil
	})
	return
}

func (r proposalRepo) ReservedByTerminalProposals(_ context.Context) (out map[string]int64, err error) {
	out = map[string]int64{}
	err = r.h.read(func(d *dataset) error {
		for _, a := range d.assignments {
			p, ok := d.proposals[a.v.ProposalID]
			if !ok || a.v.Dispatched || !entity.ProposalTerminal(p.v.State) {
				continue
			}
			out[p.v.ID] += a.v.Quantity
		}
		return nil
	})
	return
}

func (r proposalRepo) FindDuplicateAssignments(_ context.Context) (out []repository.DuplicateAssignment, err error) {
	err = r.h.read(func(d *dataset) error {
		all := rows(d.assignments, nil)
		sort.SliceStable(all, func(i, j int) bool { return all[i].AssignedAt.Before(all[j].AssignedAt) })
		groups := map[[2]string]*repository.DuplicateAssignment{}
		var keys [][2]string
		for _, a := range all {
			k := [2]string{a.ProposalItemID, a.PlacementID}
			g, ok := groups[k]
			if !ok {
				g = &repository.DuplicateAssignment{ProposalID: a.ProposalID, ProposalItemID: a.ProposalItemID, PlacementID: a.PlacementID}
				groups[k] = g
				keys = append(keys, k)
			}
			g.AssignmentIDs = append(g.AssignmentIDs, a.ID)
		}
		for _, k := range keys {
			if g := groups[k]; len(g.AssignmentIDs) > 1 {
				out = append(out, *g)
			}
		}
		return nil
	})
	return
}

type proposalLogRepo struct{ h handle }

func (r proposalLogRepo) Create(_ context.Context, l *entity.ProposalLog) error {
	return r.h.write(func(d *dataset) error {
		put(d, d.proposalLogs, l.ID, *l)
		return nil
	})
}

func (r proposalLogRepo) ListByProposal(_ context.Context, proposalID string) (out []*entity.ProposalLog, err error) {
	err = r.h.read(func(d *dataset) error {
		out = rows(d.proposalLogs, func(l *entity.ProposalLog) bool { return l.ProposalID == proposalID })
		return nil
	})
	return
}
