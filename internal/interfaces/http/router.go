package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/audit"
	"github.com/jhoicas/Farmacia-api/internal/application/catalog"
	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/proposal"
	"github.com/jhoicas/Farmacia-api/internal/application/requisition"
	"github.com/jhoicas/Farmacia-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Catalog      *catalog.UseCase
	Lots         *inventory.LotStore
	LotImporter  *inventory.LotImporter
	Ledger       *inventory.Ledger
	Requisitions *requisition.UseCase
	Generator    *proposal.Generator
	Lifecycle    *proposal.Lifecycle
	Reports      *audit.Reports
	Reconciler   *audit.Reconciler
	JWTSecret    string
}

// NewApp crea la aplicación Fiber de la API. Immutable: los valores de Params,
// Query y encabezados se guardan como llaves en los repositorios y deben
// sobrevivir a la petición; sin él apuntan a un buffer que Fiber reutiliza.
func NewApp(name string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      name,
		Immutable:    true,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
}

// Router registra las rutas de la API. Todo cuelga de /api y requiere Bearer Token;
// admin pasa cualquier RequireRole.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	anyRole := RequireRole(jwt.RoleWarehouse, jwt.RoleValidator, jwt.RoleReadOnly)
	adminOnly := RequireRole(jwt.RoleAdmin)
	warehouse := RequireRole(jwt.RoleWarehouse)
	validator := RequireRole(jwt.RoleValidator)
	operators := RequireRole(jwt.RoleWarehouse, jwt.RoleValidator)

	// Catálogo
	cat := NewCatalogHandler(deps.Catalog)
	api.Get("/products", anyRole, cat.ListProducts)
	api.Get("/products/key/:key", anyRole, cat.GetProductByKey)
	api.Get("/products/:id", anyRole, cat.GetProduct)
	api.Post("/products", adminOnly, cat.CreateProduct)
	api.Put("/products/:id", adminOnly, cat.UpdateProduct)
	api.Get("/institutions", anyRole, cat.ListInstitutions)
	api.Get("/institutions/:clue", anyRole, cat.GetInstitution)
	api.Post("/institutions", adminOnly, cat.CreateInstitution)
	api.Get("/warehouses", anyRole, cat.ListWarehouses)
	api.Post("/warehouses", adminOnly, cat.CreateWarehouse)
	api.Get("/warehouses/:id/bins", anyRole, cat.ListBins)
	api.Post("/bins", adminOnly, cat.CreateBin)
	api.Put("/bins/:id/state", warehouse, cat.ChangeBinState)
	api.Get("/suppliers", anyRole, cat.ListSuppliers)
	api.Post("/suppliers", adminOnly, cat.CreateSupplier)
	api.Post("/supply-orders", adminOnly, cat.CreateSupplyOrder)

	// Lotes, kardex y conteos
	lots := NewLotHandler(deps.Lots, deps.LotImporter, deps.Ledger, deps.Catalog)
	api.Get("/lots", anyRole, lots.List)
	api.Post("/lots", warehouse, lots.Upsert)
	api.Post("/lots/import", warehouse, lots.Import)
	api.Post("/lots/sweep", adminOnly, lots.Sweep)
	api.Get("/lots/:id", anyRole, lots.Get)
	api.Post("/lots/:id/placements", warehouse, lots.Place)
	api.Put("/lots/:id/state", warehouse, lots.ChangeState)
	api.Get("/lots/:id/state", anyRole, lots.StateHistory)
	api.Post("/lots/:id/relocations", warehouse, lots.Relocate)
	api.Get("/lots/:id/movements", anyRole, lots.Kardex)
	api.Post("/lots/:id/sync", adminOnly, lots.Sync)
	api.Post("/movements", warehouse, lots.RecordMovement)
	api.Post("/movements/:id/void", adminOnly, lots.VoidMovement)
	api.Post("/counts", warehouse, lots.RegisterCount)
	api.Get("/availability", anyRole, lots.Availability)

	// Solicitudes
	reqs := NewRequisitionHandler(deps.Requisitions)
	api.Get("/requisitions", anyRole, reqs.List)
	api.Post("/requisitions", operators, reqs.Create)
	api.Post("/requisitions/bulk", operators, reqs.ImportBulk)
	api.Get("/requisitions/:id", anyRole, reqs.Get)
	api.Post("/requisitions/:id/validate", validator, reqs.Validate)
	api.Post("/requisitions/:id/reject", validator, reqs.Reject)
	api.Post("/requisitions/:id/cancel", operators, reqs.Cancel)

	// Propuestas
	props := NewProposalHandler(deps.Generator, deps.Lifecycle)
	api.Post("/requisitions/:id/proposal", validator, props.Generate)
	api.Get("/proposals", anyRole, props.List)
	api.Get("/proposals/:id", anyRole, props.Get)
	api.Post("/proposals/:id/review", validator, props.Review)
	api.Post("/proposals/:id/picking", warehouse, props.StartPicking)
	api.Post("/proposals/:id/dispatch", warehouse, props.Dispatch)
	api.Post("/proposals/:id/cancel", validator, props.Cancel)
	api.Get("/proposals/:id/acknowledgment", anyRole, props.Acknowledgment)

	// Reportes y auditoría
	rep := NewReportHandler(deps.Reports, deps.Reconciler)
	api.Get("/reports/entries", anyRole, rep.Entries)
	api.Get("/reports/exits", anyRole, rep.Exits)
	api.Get("/reports/expiring", anyRole, rep.Expiring)
	api.Get("/reports/availability", anyRole, rep.Availability)
	api.Get("/audit/errors", anyRole, rep.ErrorLogs)
	api.Get("/audit/errors/summary", anyRole, rep.ErrorSummary)
	api.Get("/audit/reconciliations", adminOnly, rep.Reconciliations)
	api.Post("/audit/reconcile", adminOnly, rep.Reconcile)
}
