package handlers

import (
	"github.com/canopyhq/entitlement-backend/internal/auth"
	"github.com/canopyhq/entitlement-backend/internal/dto"
	"github.com/canopyhq/entitlement-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type OwnerHandler struct {
	owners *services.OwnerService
}

func NewOwnerHandler(owners *services.OwnerService) *OwnerHandler {
	return &OwnerHandler{owners: owners}
}

func (h *OwnerHandler) CreateOwner(c *fiber.Ctx) error {
	var req dto.CreateOwnerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Owner key is required",
		})
	}

	owner, err := h.owners.CreateOwner(c.UserContext(), auth.GetPrincipal(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(owner)
}

func (h *OwnerHandler) CreateConsumer(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Params("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid owner id",
		})
	}

	var req dto.CreateConsumerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	consumer, err := h.owners.CreateConsumer(c.UserContext(), auth.GetPrincipal(c), ownerID, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(consumer)
}

func (h *OwnerHandler) CreateProduct(c *fiber.Ctx) error {
	var req dto.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Product id is required",
		})
	}

	product, err := h.owners.CreateProduct(c.UserContext(), auth.GetPrincipal(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *OwnerHandler) CreateSubscription(c *fiber.Ctx) error {
	var req dto.CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	sub, err := h.owners.CreateSubscription(c.UserContext(), auth.GetPrincipal(c), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}
