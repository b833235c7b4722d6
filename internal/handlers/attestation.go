package handlers

import (
	"context"
	"time"

	"revattest/internal/attestation"
	"revattest/internal/kpi"
	"revattest/internal/services/attest"
	"revattest/internal/utils/response"
	"revattest/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// StoreAttester attests from persisted records.
type StoreAttester interface {
	FromStore(ctx context.Context, req attest.Request) (*attest.Result, error)
}

type AttestationHandler struct {
	store StoreAttester
	now   func() time.Time
}

func NewAttestationHandler(store StoreAttester) *AttestationHandler {
	return &AttestationHandler{store: store, now: time.Now}
}

// ComputeKPIs returns the KPI result for records in the request body.
func (h *AttestationHandler) ComputeKPIs(c *fiber.Ctx) error {
	var req KPIRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	req.validate(v)
	if !v.Valid() {
		return response.ValidationError(c, v.Error())
	}
	in := attest.Input(req.records(), attestRequest("", "", "", req.WindowParams, h.now()))
	return c.JSON(kpi.Compute(in))
}

// Create builds, serializes, and hashes an attestation for the records in
// the request body.
func (h *AttestationHandler) Create(c *fiber.Ctx) error {
	var req AttestationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	v := validation.New()
	v.Required("merchant_id", req.MerchantID)
	req.validate(v)
	if !v.Valid() {
		return response.ValidationError(c, v.Error())
	}
	res, err := attest.FromRecords(req.records(),
		attestRequest(req.MerchantID, req.PlatformID, req.PreviousCID, req.WindowParams, h.now()))
	if err != nil {
		return response.FromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// CreateFromStore attests the merchant's stored records.
func (h *AttestationHandler) CreateFromStore(c *fiber.Ctx) error {
	var req StoredAttestationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request format")
		}
	}
	v := validation.New()
	req.validate(v)
	if !v.Valid() {
		return response.ValidationError(c, v.Error())
	}
	res, err := h.store.FromStore(c.UserContext(),
		attestRequest(c.Params("merchantId"), req.PlatformID, req.PreviousCID, req.WindowParams, h.now()))
	if err != nil {
		return response.FromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Verify recomputes a document's hash and compares it with the one given.
func (h *AttestationHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if len(req.Attestation) == 0 || string(req.Attestation) == "null" || req.Hash == "" {
		return response.ValidationError(c, "attestation and hash are required")
	}
	v, err := attestation.Verify(req.Attestation, req.Hash)
	if err != nil {
		return response.FromError(c, err)
	}
	return c.JSON(v)
}

// Schema serves the version 1 JSON Schema.
func (h *AttestationHandler) Schema(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "application/schema+json")
	return c.Send(attestation.Schema())
}
