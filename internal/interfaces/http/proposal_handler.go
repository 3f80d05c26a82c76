package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// ProposalHandler generación y ciclo de vida de propuestas de surtimiento.
type ProposalHandler struct {
	gen       *proposal.Generator
	lifecycle *proposal.Lifecycle
}

// NewProposalHandler construye el handler.
func NewProposalHandler(gen *proposal.Generator, lifecycle *proposal.Lifecycle) *ProposalHandler {
	return &ProposalHandler{gen: gen, lifecycle: lifecycle}
}

// Generate godoc
// @Summary      Generar propuesta FEFO de una solicitud validada
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id          path   string  true   "ID de la solicitud"
// @Param        regenerate  query  bool    false  "Cancela la activa y genera otra"
// @Success      201  {object}  dto.ProposalDetailResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/requisitions/{id}/proposal [post]
func (h *ProposalHandler) Generate(c *fiber.Ctx) error {
	run := h.gen.Generate
	if queryBool(c, "regenerate") {
		run = h.gen.Regenerate
	}
	d, err := run(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toProposalDetail(d))
}

// Get godoc
// @Summary      Propuesta con renglones, asignaciones y bitácora
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la propuesta"
// @Success      200  {object}  dto.ProposalDetailResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/proposals/{id} [get]
func (h *ProposalHandler) Get(c *fiber.Ctx) error {
	d, err := h.lifecycle.Get(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if d == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "propuesta no encontrada"})
	}
	return c.JSON(toProposalDetail(d))
}

// List godoc
// @Summary      Listar propuestas
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        requisition_id  query  string  false  "Solicitud"
// @Param        state           query  string  false  "Estados separados por coma"
// @Success      200  {array}  dto.ProposalResponse
// @Router       /api/proposals [get]
func (h *ProposalHandler) List(c *fiber.Ctx) error {
	page := pageParams(c)
	f := repository.ProposalFilter{RequisitionID: c.Query("requisition_id"), Limit: page.Limit, Offset: page.Offset}
	if raw := c.Query("state"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.States = append(f.States, strings.ToUpper(strings.TrimSpace(s)))
		}
	}
	list, err := h.lifecycle.List(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.ProposalResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProposalResponse(p))
	}
	return c.JSON(out)
}

// Review godoc
// @Summary      Marcar propuesta como revisada
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la propuesta"
// @Success      200  {object}  dto.ProposalResponse
// @Router       /api/proposals/{id}/review [post]
func (h *ProposalHandler) Review(c *fiber.Ctx) error {
	p, err := h.lifecycle.Review(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProposalResponse(p))
}

// StartPicking godoc
// @Summary      Iniciar surtimiento
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la propuesta"
// @Success      200  {object}  dto.ProposalResponse
// @Router       /api/proposals/{id}/picking [post]
func (h *ProposalHandler) StartPicking(c *fiber.Ctx) error {
	p, err := h.lifecycle.StartPicking(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProposalResponse(p))
}

// Dispatch godoc
// @Summary      Confirmar despacho
// @Description  Escribe una salida por lote con el folio de la solicitud.
// @Tags         proposals
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la propuesta"
// @Param        body  body  dto.DispatchRequest  false  "Asignaciones (modo incremental)"
// @Success      200   {object}  dto.DispatchResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/proposals/{id}/dispatch [post]
func (h *ProposalHandler) Dispatch(c *fiber.Ctx) error {
	var in dto.DispatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	res, err := h.lifecycle.Dispatch(c.Context(), c.Params("id"), proposal.DispatchInput{
		Actor:         GetUserID(c),
		AssignmentIDs: in.AssignmentIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.DispatchResponse{
		Proposal:  toProposalResponse(res.Proposal),
		Movements: toMovementList(res.Movements),
		Complete:  res.Complete,
	})
}

// Cancel godoc
// @Summary      Cancelar propuesta y liberar reservas
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la propuesta"
// @Success      200  {object}  dto.ProposalResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/proposals/{id}/cancel [post]
func (h *ProposalHandler) Cancel(c *fiber.Ctx) error {
	p, err := h.lifecycle.Cancel(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toProposalResponse(p))
}

// Acknowledgment godoc
// @Summary      Datos del acuse de recibo de un despacho
// @Tags         proposals
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la propuesta"
// @Success      200  {object}  proposal.Acknowledgment
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/proposals/{id}/acknowledgment [get]
func (h *ProposalHandler) Acknowledgment(c *fiber.Ctx) error {
	ack, err := h.lifecycle.Acknowledgment(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ack)
}
