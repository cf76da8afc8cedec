package purchases

import (
	"errors"
	"strings"

	"energy-exchange/internal/application/backend"
	listsvc "energy-exchange/internal/application/listings"
	purchasesvc "energy-exchange/internal/application/purchases"
	"energy-exchange/internal/domain"
	"energy-exchange/internal/middleware"
	"energy-exchange/internal/pkg/response"
	"energy-exchange/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	liveFailureCopy      = "There was an error processing your transaction on the blockchain. This could be due to network congestion, contract errors, or insufficient funds in your wallet."
	simulatedFailureCopy = "There was an error processing your transaction. This could be due to network congestion or insufficient funds in your wallet."
)

type Handlers struct {
	Desk  *purchasesvc.Desk
	Store listsvc.Reader
}

type listingBody struct {
	ListingID string `json:"listing_id"`
	BuyerID   string `json:"buyer_id"`
}

type attemptBody struct {
	AttemptID string `json:"attempt_id"`
}

// POST /api/v1/purchases/begin
func (h *Handlers) Begin(c *fiber.Ctx) error {
	listingID, buyerID, err := parseListingBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	a, err := orch.Begin(c.Context(), listingID, buyerID)
	if err != nil {
		return h.failure(c, orch.Mode(), a, err)
	}
	return response.SuccessCreated(c, "Purchase attempt opened", a, nil)
}

// POST /api/v1/purchases/review
func (h *Handlers) Review(c *fiber.Ctx) error {
	attemptID, err := parseAttemptBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	a, err := orch.Review(attemptID)
	if err != nil {
		return h.failure(c, orch.Mode(), a, err)
	}
	return response.Success(c, "Purchase awaiting confirmation", a, nil)
}

// POST /api/v1/purchases/confirm
func (h *Handlers) Confirm(c *fiber.Ctx) error {
	attemptID, err := parseAttemptBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	a, err := orch.Confirm(c.Context(), attemptID)
	if err != nil {
		return h.failure(c, orch.Mode(), a, err)
	}
	return h.success(c, orch.Mode(), a)
}

// POST /api/v1/purchases/cancel
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	attemptID, err := parseAttemptBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	if err := orch.Cancel(attemptID); err != nil {
		return h.failure(c, orch.Mode(), domain.PurchaseAttempt{AttemptID: attemptID}, err)
	}
	return response.Success(c, "Purchase attempt cancelled", fiber.Map{"attempt_id": attemptID}, nil)
}

// POST /api/v1/purchases/retry
func (h *Handlers) Retry(c *fiber.Ctx) error {
	attemptID, err := parseAttemptBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	a, err := orch.Retry(c.Context(), attemptID)
	if err != nil {
		return h.failure(c, orch.Mode(), a, err)
	}
	return response.Success(c, "Purchase attempt reopened", a, nil)
}

// POST /api/v1/purchases/buy opens and confirms in one call.
func (h *Handlers) Buy(c *fiber.Ctx) error {
	listingID, buyerID, err := parseListingBody(c)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	orch := h.Desk.Orchestrator()
	a, err := orch.Purchase(c.Context(), listingID, buyerID)
	if err != nil {
		return h.failure(c, orch.Mode(), a, err)
	}
	return h.success(c, orch.Mode(), a)
}

// GET /api/v1/purchases/get-attempt/:attempt_id
func (h *Handlers) GetAttempt(c *fiber.Ctx) error {
	attemptID, err := uuid.Parse(c.Params("attempt_id"))
	if err != nil {
		return response.Error(c, "Invalid attempt_id format", fiber.StatusBadRequest, nil)
	}
	a, err := h.Desk.Orchestrator().Attempt(attemptID)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
	}
	return response.Success(c, "Purchase attempt fetched successfully", a, nil)
}

// GET /api/v1/mode
func (h *Handlers) GetMode(c *fiber.Ctx) error {
	return response.Success(c, "Transaction mode fetched successfully", fiber.Map{"mode": h.Desk.Mode()}, nil)
}

// PUT /api/v1/mode
func (h *Handlers) SetMode(c *fiber.Ctx) error {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := c.BodyParser(&body); err != nil || body.Mode == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	mode, err := backend.ParseMode(body.Mode)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	if err := h.Desk.SetMode(mode); err != nil {
		log.Error().Err(err).Str("mode", string(mode)).Str("trace_id", middleware.GetTraceID(c)).Msg("transaction mode switch failed")
		return response.Error(c, err.Error(), fiber.StatusServiceUnavailable, nil)
	}
	return response.Success(c, "Transaction mode updated", fiber.Map{"mode": h.Desk.Mode()}, nil)
}

func (h *Handlers) success(c *fiber.Ctx, mode backend.Mode, a domain.PurchaseAttempt) error {
	message := "Transaction completed!"
	if mode == backend.ModeLive {
		message = "Transaction confirmed on the blockchain!"
	}
	meta := fiber.Map{"mode": mode}
	if h.Store != nil {
		if l, err := h.Store.Get(c.Context(), a.ListingID); err == nil {
			meta["summary"] = "You purchased " + l.Amount.String() + " kWh of " + string(l.Source) + " energy for " + l.Price.String() + " tokens"
		}
	}
	return response.Success(c, message, a, meta)
}

func (h *Handlers) failure(c *fiber.Ctx, mode backend.Mode, a domain.PurchaseAttempt, err error) error {
	details := fiber.Map{"mode": mode}
	if a.AttemptID != uuid.Nil {
		details["attempt_id"] = a.AttemptID
	}
	switch {
	case errors.Is(err, domain.ErrBackendFailure):
		details["reason"] = domain.FailureReason(err)
		copyText := simulatedFailureCopy
		if mode == backend.ModeLive {
			copyText = liveFailureCopy
		}
		return response.Retryable(c, copyText, fiber.StatusBadGateway, details)
	case errors.Is(err, domain.ErrAlreadyLocked), errors.Is(err, domain.ErrAlreadyUnavailable):
		return response.Retryable(c, err.Error(), fiber.StatusConflict, details)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrAttemptNotFound):
		return response.Error(c, err.Error(), fiber.StatusNotFound, details)
	case errors.Is(err, domain.ErrInvalidListing):
		return response.Error(c, err.Error(), fiber.StatusBadRequest, details)
	case errors.Is(err, domain.ErrInvalidStateTransition):
		details["state"] = a.State
		return response.Error(c, err.Error(), fiber.StatusInternalServerError, details)
	}
	log.Error().Err(err).Str("trace_id", middleware.GetTraceID(c)).Msg("unhandled purchase error")
	return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, details)
}

func parseListingBody(c *fiber.Ctx) (uuid.UUID, string, error) {
	var body listingBody
	if err := c.BodyParser(&body); err != nil {
		return uuid.Nil, "", errors.New("Invalid request body")
	}
	body.BuyerID = strings.TrimSpace(body.BuyerID)
	if body.ListingID == "" || body.BuyerID == "" {
		return uuid.Nil, "", errors.New("Missing required fields")
	}
	id, err := uuid.Parse(body.ListingID)
	if err != nil {
		return uuid.Nil, "", errors.New("Invalid UUID format for listing_id")
	}
	if !validation.IsValidAccount(body.BuyerID) {
		return uuid.Nil, "", errors.New("Invalid buyer_id")
	}
	return id, body.BuyerID, nil
}

func parseAttemptBody(c *fiber.Ctx) (uuid.UUID, error) {
	var body attemptBody
	if err := c.BodyParser(&body); err != nil {
		return uuid.Nil, errors.New("Invalid request body")
	}
	if body.AttemptID == "" {
		return uuid.Nil, errors.New("Missing required fields")
	}
	id, err := uuid.Parse(body.AttemptID)
	if err != nil {
		return uuid.Nil, errors.New("Invalid UUID format for attempt_id")
	}
	return id, nil
}
