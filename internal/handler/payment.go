package handler

import (
	"errors"   // for errors.Is comparisons against repository sentinels
	"net/http" // HTTP status codes

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/stream-donation-hub/internal/repository"
	"github.com/iliyamo/stream-donation-hub/internal/service"
)

// PaymentHandler owns the two unauthenticated payment endpoints: the
// gateway's webhook callback and the donor's status poll. Both are
// addressed by the per-intent webhook token, never by operator
// identity; possession of the token is the whole authorization.
type PaymentHandler struct {
	Settlement *service.SettlementService
}

func NewPaymentHandler(settlement *service.SettlementService) *PaymentHandler {
	if settlement == nil {
		panic("nil settlement service passed to NewPaymentHandler")
	}
	return &PaymentHandler{Settlement: settlement}
}

// Callback handles POST /v1/payments/callback/:token. The gateway
// calls it when an invoice is paid. Settlement is idempotent: a
// repeat delivery returns 200 with already_processed set rather than
// an error, so the gateway never retries a success. Side-effect
// failures are reported in the body but never change the status code;
// the donation is settled the moment the intent flips to paid.
func (h *PaymentHandler) Callback(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}

	// The gateway includes the payment method in the callback body;
	// fall back to "gateway" for callers that omit it. A status of
	// "failed" is a final-failure notification instead of a settlement.
	var body struct {
		Status        string `json:"status"`
		PaymentMethod string `json:"payment_method"`
	}
	_ = c.Bind(&body)
	if body.PaymentMethod == "" {
		body.PaymentMethod = "gateway"
	}

	if body.Status == "failed" {
		intent, err := h.Settlement.FailByToken(c.Request().Context(), token)
		switch {
		case errors.Is(err, repository.ErrIntentNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
		case err != nil:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status update failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": intent.Status})
	}

	res, err := h.Settlement.SettleByToken(c.Request().Context(), token, body.PaymentMethod)
	switch {
	case errors.Is(err, repository.ErrIntentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	case errors.Is(err, repository.ErrIntentTerminal):
		return c.JSON(http.StatusConflict, echo.Map{"error": "payment can no longer be settled"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settlement failed"})
	}

	if res.AlreadyPaid {
		return c.JSON(http.StatusOK, echo.Map{
			"status":            "paid",
			"already_processed": true,
		})
	}
	resp := echo.Map{
		"status":            "paid",
		"already_processed": false,
		"donation_id":       res.Donation.DonationID,
	}
	if failed := res.Failed(); len(failed) > 0 {
		resp["degraded"] = failed
	}
	return c.JSON(http.StatusOK, resp)
}

// Check handles GET /v1/payments/check/:token. Donors poll it from
// the payment page; when the webhook got lost it reconciles against
// the gateway API and settles on the spot.
func (h *PaymentHandler) Check(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing token"})
	}
	st, err := h.Settlement.CheckByToken(c.Request().Context(), token)
	switch {
	case errors.Is(err, repository.ErrIntentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "status check failed"})
	}
	resp := echo.Map{"status": st.Status}
	if st.Donation != nil {
		resp["donation_id"] = st.Donation.DonationID
	}
	return c.JSON(http.StatusOK, resp)
}
