package repository

// Repos agrupa los repositorios atados a una misma transacción (o al pool).
// Convención: los métodos Get* devuelven (nil, nil) cuando el registro no existe.
type Repos struct {
	Products       ProductRepository
	Institutions   InstitutionRepository
	Warehouses     WarehouseRepository
	Bins           BinRepository
	Suppliers      SupplierRepository
	Lots           LotRepository
	Placements     PlacementRepository
	Counts         CountRepository
	Movements      MovementRepository
	Requisitions   RequisitionRepository
	Folios         FolioRepository
	Proposals      ProposalRepository
	ProposalLogs   ProposalLogRepository
	ErrorLogs      ErrorLogRepository
	Reconciliation ReconciliationRepository
	PlacementAudit PlacementAuditRepository
}
