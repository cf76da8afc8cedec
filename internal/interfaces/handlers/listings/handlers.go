package listings

import (
	"errors"
	"strings"

	listsvc "energy-exchange/internal/application/listings"
	"energy-exchange/internal/domain"
	"energy-exchange/internal/pkg/response"
	"energy-exchange/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Store listsvc.Store
}

type createListingBody struct {
	Source       string          `json:"source"`
	EnergyAmount decimal.Decimal `json:"energy_amount"`
	Price        decimal.Decimal `json:"price"`
	Seller       string          `json:"seller"`
	Location     string          `json:"location"`
}

// POST /api/v1/listings/create-listing
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body createListingBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	source, err := domain.ParseEnergySource(body.Source)
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	seller := strings.TrimSpace(body.Seller)
	if !validation.IsValidAccount(seller) {
		return response.Error(c, "Invalid seller account", fiber.StatusBadRequest, nil)
	}
	location := strings.TrimSpace(body.Location)
	if !validation.IsValidLocation(location) {
		return response.Error(c, "Invalid location", fiber.StatusBadRequest, nil)
	}

	id, err := h.Store.Add(c.Context(), domain.Listing{
		Source:   source,
		Amount:   body.EnergyAmount,
		Price:    body.Price,
		Seller:   seller,
		Location: location,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidListing) {
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		}
		log.Error().Err(err).Msg("create listing failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	listing, err := h.Store.Get(c.Context(), id)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, nil)
}

// GET /api/v1/listings/query?source=solar&q=austin&sort=price-low
func (h *Handlers) QueryListings(c *fiber.Ctx) error {
	criteria := listsvc.Criteria{Text: c.Query("q")}
	if s := c.Query("source"); s != "" && !strings.EqualFold(s, "all") {
		source, err := domain.ParseEnergySource(s)
		if err != nil {
			return response.Error(c, "Invalid source filter", fiber.StatusBadRequest, nil)
		}
		criteria.Source = &source
	}
	sortKey, err := listsvc.ParseSortKey(c.Query("sort"))
	if err != nil {
		return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
	}
	criteria.Sort = sortKey

	snapshot, err := h.Store.List(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("list listings failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	results := listsvc.Query(criteria, snapshot)
	return response.Success(c, "Listings fetched successfully", results, fiber.Map{
		"count": len(results),
		"sort":  criteria.Sort,
	})
}

// GET /api/v1/listings/get-listing/:listing_id
func (h *Handlers) GetListingByID(c *fiber.Ctx) error {
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	listing, err := h.Store.Get(c.Context(), listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Listing fetched successfully", listing, nil)
}

// GET /api/v1/listings/get-listing-events/:listing_id
func (h *Handlers) GetListingEvents(c *fiber.Ctx) error {
	el, ok := h.Store.(listsvc.EventLister)
	if !ok {
		return response.Error(c, "Listing events are not recorded by this store", fiber.StatusNotImplemented, nil)
	}
	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	events, err := el.Events(c.Context(), listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return response.Error(c, err.Error(), fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Listing events fetched successfully", events, nil)
}
