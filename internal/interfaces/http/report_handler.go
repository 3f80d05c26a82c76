package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/audit"
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
	"github.com/jhoicas/Farmacia-api/internal/domain/repository"
)

// ReportHandler reportes y auditoría.
type ReportHandler struct {
	reports    *audit.Reports
	reconciler *audit.Reconciler
}

// NewReportHandler construye el handler.
func NewReportHandler(reports *audit.Reports, reconciler *audit.Reconciler) *ReportHandler {
	return &ReportHandler{reports: reports, reconciler: reconciler}
}

func (h *ReportHandler) filter(c *fiber.Ctx) (audit.ReportFilter, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return audit.ReportFilter{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return audit.ReportFilter{}, err
	}
	return audit.ReportFilter{
		InstitutionID: scopedInstitution(c, c.Query("institution_id")),
		ProductID:     c.Query("product_id"),
		From:          from,
		To:            to,
	}, nil
}

// Entries godoc
// @Summary      Reporte de entradas
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        institution_id  query  string  false  "Institución (admin)"
// @Param        product_id      query  string  false  "Producto"
// @Param        from            query  string  false  "Desde"
// @Param        to              query  string  false  "Hasta"
// @Success      200  {object}  audit.MovementReport
// @Router       /api/reports/entries [get]
func (h *ReportHandler) Entries(c *fiber.Ctx) error {
	f, err := h.filter(c)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	rep, err := h.reports.Entries(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rep)
}

// Exits godoc
// @Summary      Reporte de salidas con folio y destino
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  audit.MovementReport
// @Router       /api/reports/exits [get]
func (h *ReportHandler) Exits(c *fiber.Ctx) error {
	f, err := h.filter(c)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	rep, err := h.reports.Exits(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rep)
}

// Expiring godoc
// @Summary      Lotes caducados o próximos a caducar
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Param        days  query  int  false  "Ventana en días"  default(90)
// @Success      200  {array}  audit.ExpiringLine
// @Router       /api/reports/expiring [get]
func (h *ReportHandler) Expiring(c *fiber.Ctx) error {
	lines, err := h.reports.Expiring(c.Context(), scopedInstitution(c, c.Query("institution_id")), c.QueryInt("days", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(lines)
}

// Availability godoc
// @Summary      Disponible contra reservado por producto
// @Tags         reports
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  audit.AvailabilityLine
// @Router       /api/reports/availability [get]
func (h *ReportHandler) Availability(c *fiber.Ctx) error {
	f, err := h.filter(c)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	lines, err := h.reports.Availability(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(lines)
}

func (h *ReportHandler) errorFilter(c *fiber.Ctx) (repository.ErrorLogFilter, error) {
	from, err := queryDate(c, "from")
	if err != nil {
		return repository.ErrorLogFilter{}, err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return repository.ErrorLogFilter{}, err
	}
	page := pageParams(c)
	return repository.ErrorLogFilter{
		Kind:          c.Query("kind"),
		InstitutionID: scopedInstitution(c, c.Query("institution_id")),
		UserID:        c.Query("user_id"),
		From:          from,
		To:            to,
		PendingAlert:  queryBool(c, "pending_alert"),
		Limit:         page.Limit,
		Offset:        page.Offset,
	}, nil
}

// ErrorLogs godoc
// @Summary      Bitácora de errores de carga
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.ErrorLogResponse
// @Router       /api/audit/errors [get]
func (h *ReportHandler) ErrorLogs(c *fiber.Ctx) error {
	f, err := h.errorFilter(c)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	list, err := h.reports.ErrorLogs(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toErrorLogList(list))
}

// ErrorSummary godoc
// @Summary      Resumen de errores por tipo, institución y usuario
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.ErrorSummaryResponse
// @Router       /api/audit/errors/summary [get]
func (h *ReportHandler) ErrorSummary(c *fiber.Ctx) error {
	f, err := h.errorFilter(c)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	s, err := h.reports.ErrorSummary(c.Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ErrorSummaryResponse{
		Total:         s.Total,
		ByKind:        s.ByKind,
		ByInstitution: s.ByInstitution,
		ByUser:        s.ByUser,
		PendingAlerts: s.PendingAlerts,
	})
}

// Reconcile godoc
// @Summary      Ejecutar conciliación
// @Tags         audit
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReconcileRequest  false  "dry_run"
// @Success      200   {object}  audit.Report
// @Router       /api/audit/reconcile [post]
func (h *ReportHandler) Reconcile(c *fiber.Ctx) error {
	var in dto.ReconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}
	rep, err := h.reconciler.Run(c.Context(), audit.RunOptions{DryRun: in.DryRun, Actor: GetUserID(c)})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(rep)
}

// Reconciliations godoc
// @Summary      Bitácora de conciliación
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        run_id  query  string  false  "Corrida"
// @Success      200  {array}  dto.ReconciliationEntryResponse
// @Router       /api/audit/reconciliations [get]
func (h *ReportHandler) Reconciliations(c *fiber.Ctx) error {
	page := pageParams(c)
	list, err := h.reconciler.Entries(c.Context(), c.Query("run_id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toReconciliationList(list))
}
