package handlers

import (
	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type EntitlementHandler struct {
	entitler *services.EntitlerService
}

func NewEntitlementHandler(entitler *services.EntitlerService) *EntitlementHandler {
	return &EntitlementHandler{entitler: entitler}
}

// Bind grants entitlements for the requested products from the owner's pools.
func (h *EntitlementHandler) Bind(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid owner id",
		})
	}

	var req dto.BindRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if len(req.ProductIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "At least one product id is required",
		})
	}

	ents, err := h.entitler.BindByProducts(c.UserContext(), auth.GetPrincipal(c), ownerID, req.ConsumerID, req.ProductIDs)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ents)
}

// List returns a consumer's entitlements with certificates.
func (h *EntitlementHandler) List(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid owner id",
		})
	}
	consumerID, err := uuid.Parse(c.Params("consumer_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid consumer id",
		})
	}

	ents, err := h.entitler.ListByConsumer(c.UserContext(), auth.GetPrincipal(c), ownerID, consumerID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ents)
}

// UnbindAll revokes everything the consumer holds.
func (h *EntitlementHandler) UnbindAll(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid owner id",
		})
	}
	consumerID, err := uuid.Parse(c.Params("consumer_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid consumer id",
		})
	}

	if err := h.entitler.RemoveAllEntitlements(c.UserContext(), auth.GetPrincipal(c), ownerID, consumerID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SpliceCert is the ad hoc single-shot issuance path; no pool bookkeeping.
func (h *EntitlementHandler) SpliceCert(c *fiber.Ctx) error {
	var req dto.SpliceCertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	ent, err := h.entitler.IssueCertificateForProducts(c.UserContext(), auth.GetPrincipal(c),
		req.ProductIDs, req.RhicID, req.StartDate, req.EndDate)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(ent)
}
