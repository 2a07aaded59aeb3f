package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/iliyamo/stream-donation-hub/internal/model"
)

// GatewayClient answers whether an invoice has been paid at the
// payment gateway. Used by the reconciliation path when a webhook
// delivery may have been lost.
type GatewayClient interface {
	InvoicePaid(ctx context.Context, invoiceRef string) (paid bool, paymentMethod string, err error)
}

// HTTPGateway queries the gateway's invoice status API.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Invoicer creates a payable invoice at the gateway. Satisfied by
// HTTPGateway; nil when the service runs without a gateway, in which
// case intents are created without an invoice and settle through the
// webhook token alone.
type Invoicer interface {
	CreateInvoice(ctx context.Context, amount int64, description string) (invoiceRef, paymentURL string, err error)
}

func (g *HTTPGateway) CreateInvoice(ctx context.Context, amount int64, description string) (string, string, error) {
	body, err := json.Marshal(map[string]any{
		"amount":      amount,
		"description": description,
	})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/invoices", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("gateway: create invoice returned %d", resp.StatusCode)
	}
	var out struct {
		InvoiceRef string `json:"invoice_ref"`
		PaymentURL string `json:"payment_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.InvoiceRef, out.PaymentURL, nil
}

func (g *HTTPGateway) InvoicePaid(ctx context.Context, invoiceRef string) (bool, string, error) {
	u := g.baseURL + "/invoices/" + url.PathEscape(invoiceRef)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("gateway: invoice status returned %d", resp.StatusCode)
	}
	var out struct {
		Paid          bool   `json:"paid"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, "", err
	}
	return out.Paid, out.PaymentMethod, nil
}

// UseGateway attaches a gateway client for the reconciliation path.
// Without one, CheckByToken only reports the locally known status.
func (s *SettlementService) UseGateway(g GatewayClient) { s.gateway = g }

// PaymentStatus is the donor-facing answer to "did my payment go
// through yet".
type PaymentStatus struct {
	Status   string          `json:"status"`
	Donation *model.Donation `json:"-"`
}

// CheckByToken reports the intent's status, reconciling against the
// gateway API when the intent is still pending. A webhook that never
// arrived is recovered here: if the gateway says the invoice is paid,
// the intent is settled through the normal pipeline.
func (s *SettlementService) CheckByToken(ctx context.Context, token string) (*PaymentStatus, error) {
	intent, err := s.intents.FindByWebhookToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if intent.Status != model.IntentStatusPending {
		return &PaymentStatus{Status: intent.Status}, nil
	}

	if intent.Expired(s.now()) {
		if flipped, err := s.intents.MarkExpired(ctx, intent.ID); err != nil {
			return nil, err
		} else if flipped {
			return &PaymentStatus{Status: model.IntentStatusExpired}, nil
		}
		// Lost to a concurrent settlement; re-read through the normal
		// settle path below.
	}

	if s.gateway == nil || intent.InvoiceRef == "" {
		return &PaymentStatus{Status: intent.Status}, nil
	}

	paid, method, err := s.gateway.InvoicePaid(ctx, intent.InvoiceRef)
	if err != nil {
		// Gateway unreachable: report what we know.
		return &PaymentStatus{Status: intent.Status}, nil
	}
	if !paid {
		return &PaymentStatus{Status: intent.Status}, nil
	}

	res, err := s.settle(ctx, intent, method)
	if err != nil {
		return nil, err
	}
	st := &PaymentStatus{Status: model.IntentStatusPaid}
	if res.Donation != nil {
		st.Donation = res.Donation
	}
	return st, nil
}
