package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// LotHandler lotes, ubicaciones, kardex, conteos y disponibilidad.
type LotHandler struct {
	lots     *inventory.LotStore
	importer *inventory.LotImporter
	ledger   *inventory.Ledger
	products inventory.ProductLookup
}

// NewLotHandler construye el handler.
func NewLotHandler(lots *inventory.LotStore, importer *inventory.LotImporter, ledger *inventory.Ledger, products inventory.ProductLookup) *LotHandler {
	return &LotHandler{lots: lots, importer: importer, ledger: ledger, products: products}
}

// Upsert godoc
// @Summary      Alta o actualización de lote
// @Description  La llave es (producto, institución, número de lote).
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.UpsertLotRequest  true  "Lote"
// @Success      201   {object}  dto.UpsertLotResponse
// @Success      200   {object}  dto.UpsertLotResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/lots [post]
func (h *LotHandler) Upsert(c *fiber.Ctx) error {
	var in dto.UpsertLotRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	productID := in.ProductID
	if productID == "" {
		p, err := h.products.GetProductByKey(c.Context(), in.ProductKey)
		if err != nil {
			return writeError(c, err)
		}
		productID = p.ID
	}
	var reception time.Time
	if in.ReceptionDate != nil {
		reception = *in.ReceptionDate
	}
	lot, created, err := h.lots.UpsertLot(c.Context(), inventory.LotInput{
		ProductID:       productID,
		InstitutionID:   scopedInstitution(c, in.InstitutionID),
		LotNumber:       in.LotNumber,
		QuantityInitial: in.QuantityInitial,
		UnitPrice:       in.UnitPrice,
		ExpiryDate:      in.ExpiryDate,
		ManufactureDate: in.ManufactureDate,
		ReceptionDate:   reception,
		SupplyOrderID:   in.SupplyOrderID,
		WarehouseID:     in.WarehouseID,
		Procurement:     in.Procurement,
		Actor:           GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.UpsertLotResponse{Lot: toLotResponse(lot), Created: created})
}

// Get godoc
// @Summary      Lote con sus ubicaciones
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del lote"
// @Success      200  {object}  dto.LotDetailResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/lots/{id} [get]
func (h *LotHandler) Get(c *fiber.Ctx) error {
	lot, placements, err := h.lots.GetLot(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := dto.LotDetailResponse{Lot: toLotResponse(lot), Placements: make([]dto.PlacementResponse, 0, len(placements))}
	for _, p := range placements {
		out.Placements = append(out.Placements, toPlacementResponse(p))
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Consulta de lotes
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        product_id      query  string  false  "Producto"
// @Param        institution_id  query  string  false  "Institución (admin)"
// @Param        state           query  string  false  "AVAILABLE, SUSPENDED, DAMAGED, EXPIRED (separados por coma)"
// @Param        with_stock      query  bool    false  "Sólo con existencia"
// @Success      200  {array}  dto.LotResponse
// @Router       /api/lots [get]
func (h *LotHandler) List(c *fiber.Ctx) error {
	page := pageParams(c)
	f := repository.LotFilter{
		ProductID:     c.Query("product_id"),
		InstitutionID: scopedInstitution(c, c.Query("institution_id")),
		OnlyWithStock: queryBool(c, "with_stock"),
		Limit:         page.Limit,
		Offset:        page.Offset,
	}
	if raw := c.Query("state"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			st := entity.ParseLotState(strings.ToUpper(strings.TrimSpace(name)))
			if st == 0 {
				return badRequest(c, "VALIDATION", "estado de lote inválido: "+name)
			}
			f.States = append(f.States, st)
		}
	}
	list, err := h.lots.ListLots(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toLotList(list))
}

// Place godoc
// @Summary      Acomodar unidades del lote en una ubicación
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del lote"
// @Param        body  body  dto.PlaceLotRequest  true  "Ubicación y cantidad"
// @Success      200   {object}  dto.PlacementResponse
// @Router       /api/lots/{id}/placements [post]
func (h *LotHandler) Place(c *fiber.Ctx) error {
	var in dto.PlaceLotRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	p, err := h.lots.PlaceLot(c.Context(), c.Params("id"), in.BinID, in.Quantity, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toPlacementResponse(p))
}

// ChangeState godoc
// @Summary      Cambiar estado del lote
// @Description  DAMAGED y EXPIRED dan de baja la existencia restante.
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del lote"
// @Param        body  body  dto.ChangeLotStateRequest  true  "Estado y motivo"
// @Success      200   {object}  dto.LotResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/lots/{id}/state [put]
func (h *LotHandler) ChangeState(c *fiber.Ctx) error {
	var in dto.ChangeLotStateRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	st := entity.ParseLotState(strings.ToUpper(strings.TrimSpace(in.State)))
	if st == 0 {
		return badRequest(c, "VALIDATION", "estado de lote inválido")
	}
	lot, err := h.lots.ChangeState(c.Context(), c.Params("id"), st, in.Reason, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toLotResponse(lot))
}

// StateHistory godoc
// @Summary      Historial de estados del lote
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del lote"
// @Success      200  {array}  dto.LotStateChangeResponse
// @Router       /api/lots/{id}/state [get]
func (h *LotHandler) StateHistory(c *fiber.Ctx) error {
	list, err := h.lots.StateHistory(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toStateHistory(list))
}

// Relocate godoc
// @Summary      Reubicar unidades libres del lote
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del lote"
// @Param        body  body  dto.RelocateRequest  true  "Origen, destino y cantidad"
// @Success      201   {array}  dto.MovementResponse
// @Router       /api/lots/{id}/relocations [post]
func (h *LotHandler) Relocate(c *fiber.Ctx) error {
	var in dto.RelocateRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	movs, err := h.lots.Relocate(c.Context(), c.Params("id"), in.FromBinID, in.ToBinID, in.Quantity, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementList(movs))
}

// Kardex godoc
// @Summary      Kardex del lote
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        id              path   string  true   "ID del lote"
// @Param        include_voided  query  bool    false  "Incluir anulados"
// @Success      200  {array}  dto.MovementResponse
// @Router       /api/lots/{id}/movements [get]
func (h *LotHandler) Kardex(c *fiber.Ctx) error {
	movs, err := h.lots.Kardex(c.Context(), c.Params("id"), queryBool(c, "include_voided"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toMovementList(movs))
}

// Sync godoc
// @Summary      Resincronizar el lote con sus ubicaciones
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del lote"
// @Success      200  {object}  inventory.SyncResult
// @Router       /api/lots/{id}/sync [post]
func (h *LotHandler) Sync(c *fiber.Ctx) error {
	res, err := h.lots.SyncLotTotals(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Import godoc
// @Summary      Carga masiva de lotes
// @Description  Cada renglón es independiente; los rechazados vuelven en errors.
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ImportLotsRequest  true  "Renglones"
// @Success      200   {object}  inventory.LotImportResult
// @Router       /api/lots/import [post]
func (h *LotHandler) Import(c *fiber.Ctx) error {
	var in dto.ImportLotsRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	req := inventory.LotImportRequest{
		InstitutionID: scopedInstitution(c, in.InstitutionID),
		WarehouseID:   in.WarehouseID,
		Actor:         GetUserID(c),
		Rows:          make([]inventory.LotRow, 0, len(in.Rows)),
	}
	for i, r := range in.Rows {
		req.Rows = append(req.Rows, inventory.LotRow{
			Row:             i + 1,
			Key:             r.Key,
			LotNumber:       r.LotNumber,
			BinCode:         r.BinCode,
			Quantity:        r.Quantity,
			ExpiryDate:      r.ExpiryDate,
			ManufactureDate: r.ManufactureDate,
			UnitPrice:       r.UnitPrice,
			Procurement:     r.Procurement,
		})
	}
	res, err := h.importer.Import(c.Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// RecordMovement godoc
// @Summary      Registrar movimiento manual
// @Description  Entradas, ajustes y mermas sobre una ubicación del lote.
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RecordMovementRequest  true  "Movimiento"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *LotHandler) RecordMovement(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	kind := entity.MovementKind(strings.ToUpper(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return badRequest(c, "VALIDATION", "tipo de movimiento inválido")
	}
	m, err := h.lots.RecordMovement(c.Context(), inventory.MovementInput{
		LotID:     in.LotID,
		BinID:     in.BinID,
		Kind:      kind,
		Quantity:  in.Quantity,
		Reason:    in.Reason,
		Reference: in.Reference,
		Actor:     GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(m))
}

// VoidMovement godoc
// @Summary      Anular movimiento con uno compensatorio
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del movimiento"
// @Success      201  {object}  dto.MovementResponse
// @Router       /api/movements/{id}/void [post]
func (h *LotHandler) VoidMovement(c *fiber.Ctx) error {
	m, err := h.lots.VoidMovement(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMovementResponse(m))
}

// RegisterCount godoc
// @Summary      Capturar conteo físico
// @Description  El tercer conteo cierra y ajusta la diferencia.
// @Tags         lots
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.RegisterCountRequest  true  "Conteo"
// @Success      200   {object}  dto.CountResponse
// @Router       /api/counts [post]
func (h *LotHandler) RegisterCount(c *fiber.Ctx) error {
	var in dto.RegisterCountRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	pc, err := h.lots.RegisterCount(c.Context(), in.PlacementID, in.Counted, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toCountResponse(pc))
}

// Availability godoc
// @Summary      Disponible efectivo de un producto
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Param        product_id      query  string  true   "Producto"
// @Param        quantity        query  int     true   "Cantidad requerida"
// @Param        institution_id  query  string  false  "Institución"
// @Success      200  {object}  inventory.Availability
// @Router       /api/availability [get]
func (h *LotHandler) Availability(c *fiber.Ctx) error {
	productID := c.Query("product_id")
	if productID == "" {
		return badRequest(c, "VALIDATION", "product_id es requerido")
	}
	out, err := h.ledger.AvailabilityCheck(c.Context(), productID, int64(c.QueryInt("quantity", 0)), c.Query("institution_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Sweep godoc
// @Summary      Marcar como caducados los lotes vencidos
// @Tags         lots
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  inventory.SweepResult
// @Router       /api/lots/sweep [post]
func (h *LotHandler) Sweep(c *fiber.Ctx) error {
	res, err := h.lots.SweepExpired(c.Context(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}
