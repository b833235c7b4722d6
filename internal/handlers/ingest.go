package handlers

import (
	"context"
	"fmt"
	"time"

	"revattest/internal/config"
	"revattest/internal/services/ingest"
	"revattest/internal/utils/response"
	"revattest/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Ingester pulls and stores a merchant's provider records.
type Ingester interface {
	Ingest(ctx context.Context, merchantID string, conns []ingest.Connection, start, end time.Time) ([]ingest.Report, error)
}

type IngestHandler struct {
	ingester Ingester
	roster   *config.Roster
	window   int
	now      func() time.Time
}

// NewIngestHandler wires ingest. roster may be nil; windowDays is the
// default lookback when the request gives no range.
func NewIngestHandler(ingester Ingester, roster *config.Roster, windowDays int) *IngestHandler {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &IngestHandler{ingester: ingester, roster: roster, window: windowDays, now: time.Now}
}

// Run ingests the merchant's providers and reports each outcome. Provider
// failures appear in their reports; only a storage failure is an error.
func (h *IngestHandler) Run(c *fiber.Ctx) error {
	merchantID := c.Params("merchantId")

	var req IngestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request format")
		}
	}

	v := validation.New()
	for i, conn := range req.Connections {
		v.Provider(fmt.Sprintf("connections[%d].provider", i), conn.Provider)
	}
	if !v.Valid() {
		return response.ValidationError(c, v.Error())
	}

	conns := req.Connections
	if len(conns) == 0 {
		resolved, err := h.fromRoster(merchantID)
		if err != nil {
			return response.ValidationError(c, err.Error())
		}
		conns = resolved
	}

	end := req.End
	if end.IsZero() {
		end = h.now().UTC()
	}
	start := req.Start
	if start.IsZero() {
		start = end.AddDate(0, 0, -h.window)
	}
	if !start.Before(end) {
		return response.ValidationError(c, "start must be before end")
	}

	reports, err := h.ingester.Ingest(c.UserContext(), merchantID, conns, start, end)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ingest finished", fiber.Map{
		"merchant_id": merchantID,
		"start":       start,
		"end":         end,
		"reports":     reports,
		"failed":      ingest.Failed(reports),
	})
}

func (h *IngestHandler) fromRoster(merchantID string) ([]ingest.Connection, error) {
	if h.roster == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "connections are required")
	}
	entry, ok := h.roster.Merchant(merchantID)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "merchant not in roster")
	}
	conns := make([]ingest.Connection, 0, len(entry.Providers))
	for _, p := range entry.Providers {
		cred, err := p.Credential()
		if err != nil {
			return nil, err
		}
		conns = append(conns, ingest.Connection{
			Provider:   p.Name,
			Credential: cred,
			Params:     p.Params,
			BaseURL:    p.BaseURL,
		})
	}
	return conns, nil
}
