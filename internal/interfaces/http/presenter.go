package http

import (
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
)

func toLotResponse(l *entity.Lot) dto.LotResponse {
	return dto.LotResponse{
		ID:                l.ID,
		ProductID:         l.ProductID,
		InstitutionID:     l.InstitutionID,
		LotNumber:         l.LotNumber,
		QuantityInitial:   l.QuantityInitial,
		QuantityAvailable: l.QuantityAvailable,
		QuantityReserved:  l.QuantityReserved,
		Effective:         l.EffectiveAvailable(),
		UnitPrice:         l.UnitPrice,
		TotalValue:        l.TotalValue,
		ExpiryDate:        l.ExpiryDate,
		ManufactureDate:   l.ManufactureDate,
		ReceptionDate:     l.ReceptionDate,
		State:             l.State.String(),
		StateReason:       l.StateReason,
		SupplyOrderID:     l.SupplyOrderID,
		WarehouseID:       l.WarehouseID,
		Procurement:       l.Procurement,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func toLotList(list []*entity.Lot) []dto.LotResponse {
	out := make([]dto.LotResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toLotResponse(l))
	}
	return out
}

func toPlacementResponse(p *entity.BinPlacement) dto.PlacementResponse {
	return dto.PlacementResponse{
		ID:               p.ID,
		LotID:            p.LotID,
		BinID:            p.BinID,
		Quantity:         p.Quantity,
		QuantityReserved: p.QuantityReserved,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toMovementResponse(m *entity.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:                       m.ID,
		Seq:                      m.Seq,
		LotID:                    m.LotID,
		BinID:                    m.BinID,
		Kind:                     string(m.Kind),
		Quantity:                 m.Quantity,
		QuantityBefore:           m.QuantityBefore,
		QuantityAfter:            m.QuantityAfter,
		Reason:                   m.Reason,
		Reference:                m.Reference,
		Folio:                    m.Folio,
		ProposalID:               m.ProposalID,
		DestinationInstitutionID: m.DestinationInstitutionID,
		CompensatesID:            m.CompensatesID,
		CreatedBy:                m.CreatedBy,
		CreatedAt:                m.CreatedAt,
		Voided:                   m.Voided,
		VoidedAt:                 m.VoidedAt,
	}
}

func toMovementList(list []*entity.Movement) []dto.MovementResponse {
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, toMovementResponse(m))
	}
	return out
}

func toStateHistory(list []*entity.LotStateChange) []dto.LotStateChangeResponse {
	out := make([]dto.LotStateChangeResponse, 0, len(list))
	for _, c := range list {
		out = append(out, dto.LotStateChangeResponse{
			From:      c.From.String(),
			To:        c.To.String(),
			Reason:    c.Reason,
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		})
	}
	return out
}

func toCountResponse(pc *entity.PhysicalCount) dto.CountResponse {
	return dto.CountResponse{
		ID:             pc.ID,
		PlacementID:    pc.PlacementID,
		LotID:          pc.LotID,
		BinID:          pc.BinID,
		SystemQuantity: pc.SystemQuantity,
		First:          pc.First,
		Second:         pc.Second,
		Third:          pc.Third,
		State:          pc.State,
		Difference:     pc.Difference,
		MovementID:     pc.MovementID,
		CreatedAt:      pc.CreatedAt,
		ClosedAt:       pc.ClosedAt,
	}
}

func toRequisitionResponse(r *entity.Requisition) *dto.RequisitionResponse {
	out := &dto.RequisitionResponse{
		ID:                r.ID,
		Folio:             r.Folio,
		InstitutionID:     r.InstitutionID,
		WarehouseID:       r.WarehouseID,
		Origin:            r.Origin,
		State:             r.State,
		ScheduledDelivery: r.ScheduledDelivery,
		Observations:      r.Observations,
		ValidationNotes:   r.ValidationNotes,
		RequestedBy:       r.RequestedBy,
		ValidatedBy:       r.ValidatedBy,
		ValidatedAt:       r.ValidatedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Items:             make([]dto.RequisitionItemResponse, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, dto.RequisitionItemResponse{
			ID:                it.ID,
			ProductID:         it.ProductID,
			Position:          it.Position,
			QuantityRequested: it.QuantityRequested,
			QuantityApproved:  it.QuantityApproved,
			State:             it.State,
			Justification:     it.Justification,
		})
	}
	return out
}

func toProposalResponse(p *entity.Proposal) dto.ProposalResponse {
	return dto.ProposalResponse{
		ID:              p.ID,
		RequisitionID:   p.RequisitionID,
		Folio:           p.Folio,
		State:           p.State,
		TotalRequested:  p.TotalRequested,
		TotalAvailable:  p.TotalAvailable,
		TotalProposed:   p.TotalProposed,
		TotalDispatched: p.TotalDispatched,
		GeneratedBy:     p.GeneratedBy,
		ReviewedBy:      p.ReviewedBy,
		ReviewedAt:      p.ReviewedAt,
		DispatchedBy:    p.DispatchedBy,
		DispatchedAt:    p.DispatchedAt,
		CancelledBy:     p.CancelledBy,
		CancelledAt:     p.CancelledAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toProposalDetail(d *proposal.Detail) dto.ProposalDetailResponse {
	out := dto.ProposalDetailResponse{
		Proposal:    toProposalResponse(d.Proposal),
		Items:       make([]dto.ProposalItemResponse, 0, len(d.Items)),
		Assignments: make([]dto.AssignmentResponse, 0, len(d.Assignments)),
		Log:         make([]dto.ProposalLogResponse, 0, len(d.Log)),
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, dto.ProposalItemResponse{
			ID:                 it.ID,
			RequisitionItemID:  it.RequisitionItemID,
			ProductID:          it.ProductID,
			QuantitySolicited:  it.QuantitySolicited,
			QuantityAvailable:  it.QuantityAvailable,
			QuantityProposed:   it.QuantityProposed,
			QuantityDispatched: it.QuantityDispatched,
			State:              it.State,
			Notes:              it.Notes,
		})
	}
	for _, a := range d.Assignments {
		out.Assignments = append(out.Assignments, dto.AssignmentResponse{
			ID:             a.ID,
			ProposalItemID: a.ProposalItemID,
			PlacementID:    a.PlacementID,
			LotID:          a.LotID,
			BinID:          a.BinID,
			Quantity:       a.Quantity,
			Dispatched:     a.Dispatched,
			AssignedAt:     a.AssignedAt,
			DispatchedAt:   a.DispatchedAt,
		})
	}
	for _, l := range d.Log {
		out.Log = append(out.Log, dto.ProposalLogResponse{
			Actor: l.Actor, Action: l.Action, Details: l.Details, CreatedAt: l.CreatedAt,
		})
	}
	return out
}

func toErrorLogList(list []*entity.ErrorLog) []dto.ErrorLogResponse {
	out := make([]dto.ErrorLogResponse, 0, len(list))
	for _, e := range list {
		out = append(out, dto.ErrorLogResponse{
			ID:                e.ID,
			Kind:              e.Kind,
			Key:               e.Key,
			QuantityRequested: e.QuantityRequested,
			RequisitionID:     e.RequisitionID,
			InstitutionID:     e.InstitutionID,
			UserID:            e.UserID,
			Description:       e.Description,
			AlertSent:         e.AlertSent,
			CreatedAt:         e.CreatedAt,
		})
	}
	return out
}

func toReconciliationList(list []*entity.ReconciliationEntry) []dto.ReconciliationEntryResponse {
	out := make([]dto.ReconciliationEntryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, dto.ReconciliationEntryResponse{
			RunID:      e.RunID,
			Finding:    e.Finding,
			LotID:      e.LotID,
			ProposalID: e.ProposalID,
			Expected:   e.Expected,
			Actual:     e.Actual,
			Delta:      e.Delta,
			Fixed:      e.Fixed,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
