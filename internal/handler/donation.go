package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/middleware"
	"github.com/iliyamo/stream-donation-hub/internal/model"
	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// maxMessageLen caps the donation message stored and displayed on the
// alert overlay.
const maxMessageLen = 300

// DonationHandler covers the donor-facing intent creation endpoint and
// the operator's donation history views.
type DonationHandler struct {
	IntentRepo   *repository.PaymentIntentRepo
	DonationRepo *repository.DonationRepo
	SoundRepo    *repository.SoundEffectRepo
	Invoicer     service.Invoicer // nil when no gateway is configured
}

func NewDonationHandler(intents *repository.PaymentIntentRepo, donations *repository.DonationRepo, sounds *repository.SoundEffectRepo, invoicer service.Invoicer) *DonationHandler {
	if intents == nil || donations == nil || sounds == nil {
		panic("nil repository passed to NewDonationHandler")
	}
	return &DonationHandler{IntentRepo: intents, DonationRepo: donations, SoundRepo: sounds, Invoicer: invoicer}
}

// Create handles POST /v1/donations. It validates the donor's input,
// creates a pending payment intent with an end-of-day deadline and,
// when a gateway is configured, an invoice to pay it with. The caller
// gets back the payment URL and the check token it polls with; the
// donation itself only exists once the intent settles.
func (h *DonationHandler) Create(c echo.Context) error {
	var body struct {
		StreamerID    uint64  `json:"streamer_id"`
		DonorName     string  `json:"donor_name"`
		DonorPlatform string  `json:"donor_platform"`
		DonorUserID   *uint64 `json:"donor_user_id"`
		Amount        int64   `json:"amount"`
		Message       string  `json:"message"`
		Type          string  `json:"type"`
		SoundEffectID *uint64 `json:"sound_effect_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.StreamerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "streamer_id is required"})
	}
	if body.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	if body.DonorName == "" {
		body.DonorName = "Anonymous"
	}
	if body.DonorPlatform == "" {
		body.DonorPlatform = "guest"
	}
	if runes := []rune(body.Message); len(runes) > maxMessageLen {
		body.Message = string(runes[:maxMessageLen])
	}
	if body.Type == "" {
		body.Type = model.DonationTypeAlert
	}
	if body.Type != model.DonationTypeAlert && body.Type != model.DonationTypeSoundEffect {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown donation type"})
	}

	ctx := c.Request().Context()
	if body.Type == model.DonationTypeSoundEffect {
		if body.SoundEffectID == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "sound_effect_id is required"})
		}
		clip, err := h.SoundRepo.FindActiveByID(ctx, *body.SoundEffectID)
		if errors.Is(err, repository.ErrSoundEffectNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "sound effect not found"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if body.Amount < clip.Price {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount below sound effect price"})
		}
	}

	// Unpaid intents die at the end of the calendar day.
	now := time.Now().UTC()
	expires := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)

	intent := &model.PaymentIntent{
		StreamerID:    body.StreamerID,
		DonorName:     body.DonorName,
		DonorPlatform: body.DonorPlatform,
		DonorUserID:   body.DonorUserID,
		Amount:        body.Amount,
		Currency:      "MNT",
		Message:       body.Message,
		Type:          body.Type,
		SoundEffectID: body.SoundEffectID,
		Status:        model.IntentStatusPending,
		ExpiresAt:     &expires,
	}

	var paymentURL string
	if h.Invoicer != nil {
		ref, url, err := h.Invoicer.CreateInvoice(ctx, body.Amount, "Donation to streamer "+strconv.FormatUint(body.StreamerID, 10))
		if err != nil {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
		}
		intent.InvoiceRef = ref
		paymentURL = url
	}

	if err := h.IntentRepo.Create(ctx, intent); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create payment"})
	}

	resp := echo.Map{
		"check_token": intent.WebhookToken,
		"amount":      intent.Amount,
		"currency":    intent.Currency,
		"expires_at":  expires.Format(time.RFC3339),
	}
	if paymentURL != "" {
		resp["payment_url"] = paymentURL
	}
	if intent.InvoiceRef != "" {
		resp["invoice_ref"] = intent.InvoiceRef
	}
	return c.JSON(http.StatusCreated, resp)
}

// List handles GET /v1/donations for the authenticated operator. It
// supports pagination, donor name search and whitelisted sorting.
func (h *DonationHandler) List(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))

	result, err := h.DonationRepo.ListByStreamer(c.Request().Context(), streamerID,
		page, perPage,
		c.QueryParam("search"), c.QueryParam("sort_by"), c.QueryParam("sort_order"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]echo.Map, 0, len(result.Donations))
	for i := range result.Donations {
		items = append(items, donationJSON(&result.Donations[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"donations": items,
		"total":     result.Total,
		"page":      result.Page,
		"per_page":  result.PerPage,
	})
}

// donationJSON shapes a donation for API responses; model structs stay
// free of serialization tags.
func donationJSON(d *model.Donation) echo.Map {
	m := echo.Map{
		"donation_id": d.DonationID,
		"donor_name":  d.DonorName,
		"platform":    d.DonorPlatform,
		"amount":      d.Amount,
		"message":     d.Message,
		"type":        d.Type,
		"is_test":     d.IsTest,
		"created_at":  d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.SoundEffectID != nil {
		m["sound_effect_id"] = *d.SoundEffectID
	}
	return m
}

// Stats handles GET /v1/donations/stats: lifetime totals for the
// operator dashboard.
func (h *DonationHandler) Stats(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	stats, err := h.DonationRepo.StatsByStreamer(c.Request().Context(), streamerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, stats)
}

// Recent handles GET /v1/donations/recent?limit=N.
func (h *DonationHandler) Recent(c echo.Context) error {
	streamerID := middleware.StreamerID(c)
	if streamerID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	recent, err := h.DonationRepo.RecentByStreamer(c.Request().Context(), streamerID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]echo.Map, 0, len(recent))
	for i := range recent {
		items = append(items, donationJSON(&recent[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"donations": items})
}
