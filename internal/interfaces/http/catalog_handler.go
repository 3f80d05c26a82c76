package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Farmacia-api/internal/application/catalog"
	"github.com/jhoicas/Farmacia-api/internal/application/dto"
)

// CatalogHandler productos CNIS, instituciones, almacenes, ubicaciones y proveedores.
type CatalogHandler struct {
	uc *catalog.UseCase
}

// NewCatalogHandler construye el handler.
func NewCatalogHandler(uc *catalog.UseCase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

// CreateProduct godoc
// @Summary      Alta de producto CNIS
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateProductRequest  true  "Datos del producto"
// @Success      201   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateProduct(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetProduct godoc
// @Summary      Obtener producto por ID
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id} [get]
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	out, err := h.uc.GetProduct(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if out == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	}
	return c.JSON(out)
}

// GetProductByKey godoc
// @Summary      Buscar producto por clave CNIS (coincidencia exacta)
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        key  path  string  true  "Clave CNIS"
// @Success      200  {object}  dto.ProductResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/products/key/{key} [get]
func (h *CatalogHandler) GetProductByKey(c *fiber.Ctx) error {
	out, err := h.uc.ProductByKey(c.Context(), c.Params("key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListProducts godoc
// @Summary      Listar productos
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        q       query  string  false  "Búsqueda en clave o descripción"
// @Param        limit   query  int     false  "Límite"   default(20)
// @Param        offset  query  int     false  "Offset"   default(0)
// @Success      200     {object}  dto.ProductListResponse
// @Router       /api/products [get]
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	out, err := h.uc.ListProducts(c.Context(), c.Query("q"), pageParams(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// UpdateProduct godoc
// @Summary      Actualizar producto
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del producto"
// @Param        body  body  dto.UpdateProductRequest  true  "Datos a actualizar"
// @Success      200   {object}  dto.ProductResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/products/{id} [put]
func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	var in dto.UpdateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.UpdateProduct(c.Context(), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateInstitution godoc
// @Summary      Alta de institución
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateInstitutionRequest  true  "Institución"
// @Success      201   {object}  dto.InstitutionResponse
// @Router       /api/institutions [post]
func (h *CatalogHandler) CreateInstitution(c *fiber.Ctx) error {
	var in dto.CreateInstitutionRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateInstitution(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetInstitution godoc
// @Summary      Institución por CLUES
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        clue  path  string  true  "CLUES"
// @Success      200   {object}  dto.InstitutionResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/institutions/{clue} [get]
func (h *CatalogHandler) GetInstitution(c *fiber.Ctx) error {
	out, err := h.uc.InstitutionByClue(c.Context(), c.Params("clue"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ListInstitutions godoc
// @Summary      Listar instituciones
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.InstitutionResponse
// @Router       /api/institutions [get]
func (h *CatalogHandler) ListInstitutions(c *fiber.Ctx) error {
	out, err := h.uc.ListInstitutions(c.Context(), pageParams(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateWarehouse godoc
// @Summary      Alta de almacén
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateWarehouseRequest  true  "Almacén"
// @Success      201   {object}  dto.WarehouseResponse
// @Router       /api/warehouses [post]
func (h *CatalogHandler) CreateWarehouse(c *fiber.Ctx) error {
	var in dto.CreateWarehouseRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	in.InstitutionID = scopedInstitution(c, in.InstitutionID)
	out, err := h.uc.CreateWarehouse(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListWarehouses godoc
// @Summary      Almacenes de una institución
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        institution_id  query  string  false  "Institución (admin)"
// @Success      200  {array}  dto.WarehouseResponse
// @Router       /api/warehouses [get]
func (h *CatalogHandler) ListWarehouses(c *fiber.Ctx) error {
	out, err := h.uc.ListWarehouses(c.Context(), scopedInstitution(c, c.Query("institution_id")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateBin godoc
// @Summary      Alta de ubicación
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateBinRequest  true  "Ubicación"
// @Success      201   {object}  dto.BinResponse
// @Router       /api/bins [post]
func (h *CatalogHandler) CreateBin(c *fiber.Ctx) error {
	var in dto.CreateBinRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateBin(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListBins godoc
// @Summary      Ubicaciones de un almacén, ordenadas por código
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID del almacén"
// @Success      200  {array}  dto.BinResponse
// @Router       /api/warehouses/{id}/bins [get]
func (h *CatalogHandler) ListBins(c *fiber.Ctx) error {
	out, err := h.uc.ListBins(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ChangeBinState godoc
// @Summary      Cambiar estado de una ubicación
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID de la ubicación"
// @Param        body  body  dto.ChangeBinStateRequest  true  "Nuevo estado"
// @Success      200   {object}  dto.BinResponse
// @Router       /api/bins/{id}/state [put]
func (h *CatalogHandler) ChangeBinState(c *fiber.Ctx) error {
	var in dto.ChangeBinStateRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.ChangeBinState(c.Context(), c.Params("id"), in.State)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateSupplier godoc
// @Summary      Alta de proveedor
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSupplierRequest  true  "Proveedor"
// @Success      201   {object}  dto.SupplierResponse
// @Router       /api/suppliers [post]
func (h *CatalogHandler) CreateSupplier(c *fiber.Ctx) error {
	var in dto.CreateSupplierRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateSupplier(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListSuppliers godoc
// @Summary      Listar proveedores
// @Tags         catalog
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.SupplierResponse
// @Router       /api/suppliers [get]
func (h *CatalogHandler) ListSuppliers(c *fiber.Ctx) error {
	out, err := h.uc.ListSuppliers(c.Context(), pageParams(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateSupplyOrder godoc
// @Summary      Alta de orden de suministro
// @Tags         catalog
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSupplyOrderRequest  true  "Orden"
// @Success      201   {object}  dto.SupplyOrderResponse
// @Router       /api/supply-orders [post]
func (h *CatalogHandler) CreateSupplyOrder(c *fiber.Ctx) error {
	var in dto.CreateSupplyOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.uc.CreateSupplyOrder(c.Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}
