package booking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/wolfman30/booking-widget/internal/catalog"
	"github.com/wolfman30/booking-widget/pkg/logging"
)

// Alerts shown through the host.
const (
	AlertDateTimeRequired = "Please select a date and time for the appointment"
	AlertNoServices       = "Please select at least one service"
	AlertInvoiceFailed    = "Could not create the invoice. Please try again."
)

// Invoice statuses reported when the host closes the invoice.
const (
	InvoiceStatusPaid      = "paid"
	InvoiceStatusPending   = "pending"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusFailed    = "failed"
)

var (
	ErrRequestInFlight   = errors.New("booking: invoice request already in flight")
	ErrWrongSection      = errors.New("booking: action not available in current section")
	ErrUnknownService    = errors.New("booking: unknown service")
	ErrUnknownDate       = errors.New("booking: unknown date")
	ErrUnknownTime       = errors.New("booking: unknown time")
	ErrDateNotSelected   = errors.New("booking: no date selected")
	ErrEmptyInvoiceLink  = errors.New("booking: empty invoice link")
	ErrControllerNotInit = errors.New("booking: controller requires catalog, host, renderer and requester")
)

// Host is the chat-platform surface the widget drives.
type Host interface {
	ShowMainButton()
	HideMainButton()
	SetMainButtonText(text string)
	ShowBackButton()
	HideBackButton()
	ShowAlert(text string)
	OpenInvoice(link string)
	Close()
}

// Renderer displays a Screen.
type Renderer interface {
	Render(screen Screen)
}

// Controller owns one session's selection and section. Its methods are safe
// for concurrent use; the lock is released while an invoice link is being
// requested.
type Controller struct {
	catalog   *catalog.Catalog
	identity  Identity
	host      Host
	renderer  Renderer
	requester InvoiceLinkRequester
	clock     Clock
	context   string
	logger    *logging.Logger

	mu          sync.Mutex
	section     Section
	selection   Selection
	mainVisible bool
	inFlight    bool
}

// NewController creates a controller in the service selection section.
func NewController(cat *catalog.Catalog, identity Identity, host Host, renderer Renderer, requester InvoiceLinkRequester) (*Controller, error) {
	if host == nil || renderer == nil || requester == nil {
		return nil, ErrControllerNotInit
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("booking: %w", err)
	}
	return &Controller{
		catalog:   cat,
		identity:  identity,
		host:      host,
		renderer:  renderer,
		requester: requester,
		clock:     SystemClock{},
		context:   DefaultDescriptionContext,
		logger:    logging.Default(),
		section:   SectionServiceSelection,
	}, nil
}

// WithClock overrides the clock used for date labels.
func (c *Controller) WithClock(clock Clock) *Controller {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// WithDescriptionContext overrides the opening words of the invoice description.
func (c *Controller) WithDescriptionContext(text string) *Controller {
	if text != "" {
		c.context = text
	}
	return c
}

func (c *Controller) WithLogger(logger *logging.Logger) *Controller {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Start renders the initial screen and sets up the host buttons.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host.SetMainButtonText(c.mainLabel())
	c.host.HideBackButton()
	c.syncMainButton(true)
	c.render()
}

// Section returns the active section.
func (c *Controller) Section() Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.section
}

// Selection returns a copy of the current selection.
func (c *Controller) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.clone()
}

// Screen returns the screen for the current state.
func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen()
}

// InFlight reports whether an invoice request is outstanding.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// ToggleService adds or removes the service at index and shows or hides the
// main button when the selection becomes non-empty or empty.
func (c *Controller) ToggleService(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section != SectionServiceSelection {
		return ErrWrongSection
	}
	if _, ok := c.catalog.Service(index); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownService, index)
	}
	c.selection.Toggle(index)
	c.syncMainButton(false)
	c.render()
	return nil
}

// ToggleServiceKey is ToggleService for an option key.
func (c *Controller) ToggleServiceKey(key string) error {
	index, err := strconv.Atoi(key)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownService, key)
	}
	return c.ToggleService(index)
}

// Advance moves from service selection to date and time selection. The date
// and time are cleared on every entry.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section != SectionServiceSelection {
		return ErrWrongSection
	}
	if !c.selection.HasServices() {
		return ErrNoServicesSelected
	}
	c.section = SectionDateTimeSelection
	c.selection.ClearDateTime()
	c.host.ShowBackButton()
	c.host.SetMainButtonText(c.mainLabel())
	c.render()
	return nil
}

// Back returns to service selection. Selected services are kept.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section != SectionDateTimeSelection {
		return ErrWrongSection
	}
	c.section = SectionServiceSelection
	c.selection.ClearDateTime()
	c.host.HideBackButton()
	c.host.SetMainButtonText(c.mainLabel())
	c.syncMainButton(false)
	c.render()
	return nil
}

// SelectDate selects date exclusively and clears the selected time.
func (c *Controller) SelectDate(date string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section != SectionDateTimeSelection {
		return ErrWrongSection
	}
	if _, ok := c.catalog.FreeSlots.Times(date); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDate, date)
	}
	c.selection.SetDate(date)
	c.render()
	return nil
}

// SelectTime selects a time of the selected date exclusively.
func (c *Controller) SelectTime(t string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.section != SectionDateTimeSelection {
		return ErrWrongSection
	}
	if c.selection.Date() == "" {
		return ErrDateNotSelected
	}
	if !c.catalog.HasTime(c.selection.Date(), t) {
		return fmt.Errorf("%w: %q on %s", ErrUnknownTime, t, c.selection.Date())
	}
	c.selection.SetTime(t)
	c.render()
	return nil
}

// MainButton handles a main button press in either section.
func (c *Controller) MainButton(ctx context.Context) error {
	if c.Section() == SectionServiceSelection {
		return c.Advance()
	}
	_, err := c.Confirm(ctx)
	return err
}

// Confirm validates the selection, requests an invoice link and opens it in
// the host. Incomplete selections raise an alert and send nothing. A second
// call while a request is outstanding returns ErrRequestInFlight.
func (c *Controller) Confirm(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.section != SectionDateTimeSelection {
		c.mu.Unlock()
		return "", ErrWrongSection
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrRequestInFlight
	}
	req, err := BuildInvoiceRequest(c.catalog, &c.selection, c.identity, c.context, c.clock.Now())
	if err != nil {
		c.mu.Unlock()
		switch {
		case errors.Is(err, ErrDateTimeRequired):
			c.host.ShowAlert(AlertDateTimeRequired)
		case errors.Is(err, ErrNoServicesSelected):
			c.host.ShowAlert(AlertNoServices)
		default:
			c.logger.Error("booking: build invoice request failed", "error", err)
			c.host.ShowAlert(AlertInvoiceFailed)
		}
		return "", err
	}
	c.inFlight = true
	c.mu.Unlock()

	start := time.Now()
	link, err := c.requester.CreateInvoiceLink(ctx, req)
	if err == nil && link == "" {
		err = ErrEmptyInvoiceLink
	}

	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("booking: invoice link request failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		c.host.ShowAlert(AlertInvoiceFailed)
		return "", fmt.Errorf("booking: create invoice link: %w", err)
	}

	c.logger.Info("booking: invoice link created",
		"services", len(req.Prices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	c.host.OpenInvoice(link)
	return link, nil
}

// InvoiceClosed closes the session when the invoice ended pending or paid.
// It reports whether the session was closed.
func (c *Controller) InvoiceClosed(status string) bool {
	switch status {
	case InvoiceStatusPending, InvoiceStatusPaid:
		c.logger.Info("booking: invoice closed, ending session", "status", status)
		c.host.Close()
		return true
	default:
		c.logger.Debug("booking: invoice closed without payment", "status", status)
		return false
	}
}

func (c *Controller) mainLabel() string {
	if c.section == SectionDateTimeSelection {
		return LabelBook
	}
	return LabelSelectDateTime
}

// syncMainButton shows or hides the main button on the service step when its
// visibility no longer matches the selection. force issues the call even
// without a change.
func (c *Controller) syncMainButton(force bool) {
	if c.section != SectionServiceSelection {
		return
	}
	want := c.selection.HasServices()
	if want == c.mainVisible && !force {
		return
	}
	c.mainVisible = want
	if want {
		c.host.ShowMainButton()
	} else {
		c.host.HideMainButton()
	}
}

func (c *Controller) screen() Screen {
	dateTime := c.section == SectionDateTimeSelection
	screen := Screen{
		Section:          c.section,
		ServicePanel:     !dateTime,
		DateTimePanel:    dateTime,
		Services:         ServiceOptions(c.catalog.Services, &c.selection),
		Dates:            []Option{},
		Times:            []Option{},
		MainButtonText:   c.mainLabel(),
		MainButtonActive: c.mainVisible,
		BackButtonActive: dateTime,
	}
	if dateTime {
		screen.Dates = DateOptions(c.catalog.FreeSlots, &c.selection, c.clock.Now())
		screen.Times = TimeOptions(c.catalog.FreeSlots, &c.selection)
		screen.TimePanel = c.selection.Date() != ""
	}
	return screen
}

func (c *Controller) render() {
	c.renderer.Render(c.screen())
}
