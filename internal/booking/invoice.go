package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wolfman30/booking-widget/internal/catalog"
)

// DefaultDescriptionContext opens the invoice description.
const DefaultDescriptionContext = "Beauty salon services"

var (
	ErrDateTimeRequired   = errors.New("booking: date and time are required")
	ErrNoServicesSelected = errors.New("booking: no services selected")
)

// LineItem is one priced entry of an invoice. Amount is in minor currency
// units.
type LineItem struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Identity carries the host-supplied values used verbatim in the payload and
// the invoice request.
type Identity struct {
	UserID          string
	InitMessageID   string
	InitDataHash    string
	DataCheckString string
}

// InvoiceRequest is everything sent to obtain an invoice link.
type InvoiceRequest struct {
	Description     string
	Prices          []LineItem
	Payload         string
	InitDataHash    string
	DataCheckString string
}

// PricesJSON encodes the line items as a JSON array of {label, amount}.
func (r InvoiceRequest) PricesJSON() (string, error) {
	prices := r.Prices
	if prices == nil {
		prices = []LineItem{}
	}
	b, err := json.Marshal(prices)
	if err != nil {
		return "", fmt.Errorf("booking: encode prices: %w", err)
	}
	return string(b), nil
}

// InvoiceLinkRequester turns an invoice request into an opaque invoice link.
type InvoiceLinkRequester interface {
	CreateInvoiceLink(ctx context.Context, req InvoiceRequest) (string, error)
}

// MinorUnits converts a major-unit price to minor units, assuming two minor
// digits.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// Describe builds "<context> for you on <date label> at <HH:MM>".
func Describe(descriptionContext, date, t string, now time.Time) string {
	descriptionContext = strings.TrimSpace(descriptionContext)
	if descriptionContext == "" {
		descriptionContext = DefaultDescriptionContext
	}
	return fmt.Sprintf("%s for you on %s at %s", descriptionContext, FormatDate(date, now), FormatTime(t))
}

// BuildInvoiceRequest validates sel against cat and assembles the request.
func BuildInvoiceRequest(cat *catalog.Catalog, sel *Selection, id Identity, descriptionContext string, now time.Time) (InvoiceRequest, error) {
	if !sel.Complete() {
		return InvoiceRequest{}, ErrDateTimeRequired
	}
	if !sel.HasServices() {
		return InvoiceRequest{}, ErrNoServicesSelected
	}

	indexes := sel.Services()
	prices := make([]LineItem, 0, len(indexes))
	ids := make([]catalog.ServiceID, 0, len(indexes))
	for _, index := range indexes {
		svc, ok := cat.Service(index)
		if !ok {
			return InvoiceRequest{}, fmt.Errorf("booking: selected service %d not in catalog", index)
		}
		prices = append(prices, LineItem{Label: svc.Title, Amount: MinorUnits(svc.Price)})
		ids = append(ids, svc.ID)
	}

	payload, err := EncodePayload(Payload{
		UserID:        id.UserID,
		InitMessageID: id.InitMessageID,
		ServiceIDs:    ids,
		Date:          sel.Date(),
		Time:          sel.Time(),
	})
	if err != nil {
		return InvoiceRequest{}, err
	}

	return InvoiceRequest{
		Description:     Describe(descriptionContext, sel.Date(), sel.Time(), now),
		Prices:          prices,
		Payload:         payload,
		InitDataHash:    id.InitDataHash,
		DataCheckString: id.DataCheckString,
	}, nil
}
