package requisition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/Farmacia-api/internal/application/ports"
	"github.com/jhoicas/Farmacia-api/internal/domain"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
	"github.com/jhoicas/Farmacia-api/pkg/textnorm"
)

// ExternalFolioMarker etiqueta con la que el folio externo queda en observaciones.
const ExternalFolioMarker = "FOLIO EXTERNO: "

// BulkRow renglón {CLAVE, CANTIDAD SOLICITADA} de la hoja de carga.
type BulkRow struct {
	Row      int
	Key      string
	Quantity int64
}

// BulkInput carga masiva de una solicitud.
type BulkInput struct {
	InstitutionID     string
	WarehouseID       string
	ScheduledDelivery *time.Time
	Observations      string
	ExternalFolio     string
	Actor             string
	Rows              []BulkRow
}

// BulkResult resultado de la carga. Requisition es nil si ningún renglón fue aceptado.
type BulkResult struct {
	Requisition *entity.Requisition `json:"requisition,omitempty"`
	Accepted    int                 `json:"accepted"`
	Skipped     int                 `json:"skipped"`
	Errors      []domain.RowError   `json:"errors"`
}

// ImportBulk crea una solicitud BULK con los renglones válidos. Cada renglón
// rechazado queda en la bitácora de errores; los UNKNOWN_KEY se publican como alerta.
func (uc *UseCase) ImportBulk(ctx context.Context, in BulkInput) (*BulkResult, error) {
	now := uc.now()
	observations := strings.TrimSpace(in.Observations)
	ext := textnorm.Code(in.ExternalFolio)
	if ext != "" {
		marker := ExternalFolioMarker + ext
		dup, err := uc.repos.Requisitions.FindByObservation(ctx, in.Actor, marker,
			now.Add(-uc.cfg.ExternalFolioLookBack), now.Add(uc.cfg.ExternalFolioLookAhead))
		if err != nil {
			return nil, err
		}
		if len(dup) > 0 {
			return nil, fmt.Errorf("folio externo %s ya cargado en %s: %w", ext, dup[0].Folio, domain.ErrDuplicate)
		}
		if observations != "" {
			observations += " | "
		}
		observations += marker
	}

	res := &BulkResult{Errors: []domain.RowError{}}
	var items []ItemInput
	var logs []*entity.ErrorLog
	reject := func(row BulkRow, kind, reason string) {
		res.Errors = append(res.Errors, domain.RowError{Row: row.Row, Kind: kind, Key: row.Key, Reason: reason})
		logs = append(logs, &entity.ErrorLog{
			ID:                uuid.New().String(),
			Kind:              kind,
			Key:               row.Key,
			QuantityRequested: row.Quantity,
			InstitutionID:     in.InstitutionID,
			UserID:            in.Actor,
			Description:       reason,
			CreatedAt:         now,
		})
		uc.log.Warn().Int("renglon", row.Row).Str("clave", row.Key).Str("tipo", kind).Msg("renglón de solicitud rechazado")
	}

	for _, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if textnorm.Placeholder(row.Key) {
			res.Skipped++
			continue
		}
		row.Key = textnorm.Code(row.Key)
		if row.Quantity <= 0 {
			reject(row, entity.ErrorKindInvalidQuantity, "la cantidad solicitada debe ser mayor a cero")
			continue
		}
		p, err := uc.products.GetProductByKey(ctx, row.Key)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownKey) {
				reject(row, entity.ErrorKindUnknownKey, "clave CNIS no existe en el catálogo")
				continue
			}
			return nil, err
		}
		items = append(items, ItemInput{ProductID: p.ID, Quantity: row.Quantity})
		res.Accepted++
	}

	err := uc.txRunner.Run(ctx, func(r repository.Repos) error {
		if len(items) > 0 {
			req, err := uc.createTx(ctx, r, CreateInput{
				InstitutionID:     in.InstitutionID,
				WarehouseID:       in.WarehouseID,
				ScheduledDelivery: in.ScheduledDelivery,
				Observations:      observations,
				RequestedBy:       in.Actor,
				Origin:            entity.RequisitionOriginBulk,
				Items:             items,
			})
			if err != nil {
				return err
			}
			if ext != "" {
				claimed, err := r.Requisitions.ClaimExternalFolio(ctx, in.Actor, ext, req.ID, now, now.Add(-uc.cfg.ExternalFolioLookBack))
				if err != nil {
					return err
				}
				if !claimed {
					return fmt.Errorf("folio externo %s ya cargado: %w", ext, domain.ErrDuplicate)
				}
			}
			res.Requisition = req
		}
		for _, l := range logs {
			if res.Requisition != nil {
				l.RequisitionID = res.Requisition.ID
			}
			if err := r.ErrorLogs.Create(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.sendAlerts(ctx, logs)
	ev := uc.log.Info().Int("aceptados", res.Accepted).Int("omitidos", res.Skipped).Int("errores", len(res.Errors))
	if res.Requisition != nil {
		ev = ev.Str("folio", res.Requisition.Folio)
	}
	ev.Msg("carga masiva de solicitud terminada")
	return res, nil
}

// sendAlerts publica los errores que ameritan alerta y los marca como enviados.
// Si la publicación falla quedan pendientes para el siguiente intento.
func (uc *UseCase) sendAlerts(ctx context.Context, logs []*entity.ErrorLog) {
	var events []ports.Event
	var ids []string
	for _, l := range logs {
		if l.Kind != entity.ErrorKindUnknownKey && l.Kind != entity.ErrorKindNoStock {
			continue
		}
		events = append(events, AlertEvent(l))
		ids = append(ids, l.ID)
	}
	if len(events) == 0 {
		return
	}
	if err := uc.publisher.Publish(ctx, events...); err != nil {
		uc.log.Warn().Err(err).Int("alertas", len(events)).Msg("no se pudieron publicar alertas de carga")
		return
	}
	if err := uc.repos.ErrorLogs.MarkAlertSent(ctx, ids); err != nil {
		uc.log.Error().Err(err).Msg("alertas publicadas sin marcar como enviadas")
	}
}

// AlertEvent evento stock.alert de un renglón de la bitácora de errores.
func AlertEvent(l *entity.ErrorLog) ports.Event {
	return ports.Event{
		Type:       ports.EventStockAlert,
		Key:        l.InstitutionID,
		OccurredAt: l.CreatedAt,
		Payload: map[string]any{
			"error_id":       l.ID,
			"kind":           l.Kind,
			"key":            l.Key,
			"quantity":       l.QuantityRequested,
			"requisition_id": l.RequisitionID,
			"user_id":        l.UserID,
		},
	}
}
