package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/internal/domain/entity"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// RequisitionHandler solicitudes de pedido.
type RequisitionHandler struct {
	uc *requisition.UseCase
}

// NewRequisitionHandler construye el handler.
func NewRequisitionHandler(uc *requisition.UseCase) *RequisitionHandler {
	return &RequisitionHandler{uc: uc}
}

// Create godoc
// @Summary      Alta de solicitud
// @Tags         requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateRequisitionRequest  true  "Solicitud"
// @Success      201   {object}  dto.RequisitionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/requisitions [post]
func (h *RequisitionHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateRequisitionRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	items := make([]requisition.ItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, requisition.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Justification: it.Justification})
	}
	req, err := h.uc.Create(c.Context(), requisition.CreateInput{
		InstitutionID:     scopedInstitution(c, in.InstitutionID),
		WarehouseID:       in.WarehouseID,
		ScheduledDelivery: in.ScheduledDelivery,
		Observations:      in.Observations,
		RequestedBy:       GetUserID(c),
		Origin:            entity.RequisitionOriginManual,
		Items:             items,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRequisitionResponse(req))
}

// ImportBulk godoc
// @Summary      Carga masiva de solicitud
// @Description  Renglones {clave, cantidad}. Los rechazados quedan en la bitácora de errores.
// @Tags         requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BulkRequisitionRequest  true  "Carga"
// @Success      200   {object}  dto.BulkRequisitionResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/requisitions/bulk [post]
func (h *RequisitionHandler) ImportBulk(c *fiber.Ctx) error {
	var in dto.BulkRequisitionRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	rows := make([]requisition.BulkRow, 0, len(in.Rows))
	for i, r := range in.Rows {
		rows = append(rows, requisition.BulkRow{Row: i + 1, Key: r.Key, Quantity: r.Quantity})
	}
	res, err := h.uc.ImportBulk(c.Context(), requisition.BulkInput{
		InstitutionID:     scopedInstitution(c, in.InstitutionID),
		WarehouseID:       in.WarehouseID,
		ScheduledDelivery: in.ScheduledDelivery,
		Observations:      in.Observations,
		ExternalFolio:     in.ExternalFolio,
		Actor:             GetUserID(c),
		Rows:              rows,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := dto.BulkRequisitionResponse{Accepted: res.Accepted, Skipped: res.Skipped, Errors: res.Errors}
	if res.Requisition != nil {
		out.Requisition = toRequisitionResponse(res.Requisition)
	}
	return c.JSON(out)
}

// Get godoc
// @Summary      Solicitud por ID o folio
// @Description  Un valor con forma IB-YYYY-NNNNNN se busca como folio.
// @Tags         requisitions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID o folio"
// @Success      200  {object}  dto.RequisitionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/requisitions/{id} [get]
func (h *RequisitionHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	var (
		req *entity.Requisition
		err error
	)
	if strings.Count(id, "-") == 2 {
		req, err = h.uc.GetByFolio(c.Context(), id)
	} else {
		req, err = h.uc.Get(c.Context(), id)
	}
	if err != nil {
		return writeError(c, err)
	}
	if req == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "solicitud no encontrada"})
	}
	return c.JSON(toRequisitionResponse(req))
}

// List godoc
// @Summary      Listar solicitudes
// @Tags         requisitions
// @Security     Bearer
// @Produce      json
// @Param        state           query  string  false  "Estado"
// @Param        institution_id  query  string  false  "Institución (admin)"
// @Param        from            query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to              query  string  false  "Hasta (YYYY-MM-DD)"
// @Success      200  {array}  dto.RequisitionResponse
// @Router       /api/requisitions [get]
func (h *RequisitionHandler) List(c *fiber.Ctx) error {
	from, err := queryDate(c, "from")
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	page := pageParams(c)
	list, err := h.uc.List(c.Context(), repository.RequisitionFilter{
		InstitutionID: scopedInstitution(c, c.Query("institution_id")),
		State:         strings.ToUpper(c.Query("state")),
		From:          from,
		To:            to,
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	if err != nil {
		return writeError(c, err)
	}
	out := make([]*dto.RequisitionResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toRequisitionResponse(r))
	}
	return c.JSON(out)
}

// Validate godoc
// @Summary      Validar solicitud
// @Tags         requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la solicitud"
// @Param        body  body  dto.ValidateRequisitionRequest  true  "Cantidades aprobadas"
// @Success      200   {object}  dto.RequisitionResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/requisitions/{id}/validate [post]
func (h *RequisitionHandler) Validate(c *fiber.Ctx) error {
	var in dto.ValidateRequisitionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	req, err := h.uc.Validate(c.Context(), c.Params("id"), requisition.ValidateInput{
		Approvals: in.Approvals,
		Notes:     in.Notes,
		Actor:     GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toRequisitionResponse(req))
}

// Reject godoc
// @Summary      Rechazar solicitud
// @Tags         requisitions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la solicitud"
// @Param        body  body  dto.RejectRequisitionRequest  true  "Motivo"
// @Success      200   {object}  dto.RequisitionResponse
// @Router       /api/requisitions/{id}/reject [post]
func (h *RequisitionHandler) Reject(c *fiber.Ctx) error {
	var in dto.RejectRequisitionRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	if strings.TrimSpace(in.Reason) == "" {
		return badRequest(c, "VALIDATION", "reason es requerido")
	}
	req, err := h.uc.Reject(c.Context(), c.Params("id"), in.Reason, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toRequisitionResponse(req))
}

// Cancel godoc
// @Summary      Cancelar solicitud pendiente
// @Tags         requisitions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la solicitud"
// @Success      200  {object}  dto.RequisitionResponse
// @Router       /api/requisitions/{id}/cancel [post]
func (h *RequisitionHandler) Cancel(c *fiber.Ctx) error {
	req, err := h.uc.Cancel(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toRequisitionResponse(req))
}
