/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate an empty ledger with
	realistic data for demos and integration tests. Each scenario creates
	categories and items, then records events that exercise specific
	costing behavior.

AVAILABLE SCENARIOS:

	food-pantry:     Canned goods and produce, purchases, donations, client
	                 distributions and spoilage
	bulk-fractional: Bulk goods sold by weight; fractional quantities and
	                 truncated intake cost
	void-correction: A mistyped purchase and a double-counted distribution,
	                 both voided

HOW SCENARIOS WORK:
 1. Refuse unless the ledger has no items (history cannot be reset)
 2. Create categories and items
 3. Record events through the ledger, as the "scenario" actor

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "food-pantry"}

USAGE VIA CLI:

	inventory seed food-pantry

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' with ID, name, description
 2. Write the loader: loadXxx(ctx, l)
 3. Add it to 'loaders'

SEE ALSO:
  - handlers.go: Handler plumbing
  - cli/commands.go: seed command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/inventory-ledger/ledger"
)

// ScenarioActor is recorded on every row a scenario writes.
const ScenarioActor = "scenario"

var (
	// ErrUnknownScenario is returned for an unregistered scenario ID.
	ErrUnknownScenario = errors.New("unknown scenario")

	// ErrLedgerNotEmpty is returned when loading into a ledger with items.
	ErrLedgerNotEmpty = errors.New("scenarios load into an empty ledger only")
)

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "food-pantry",
		Name:        "Food Pantry",
		Description: "Purchases, donations, client distributions and spoilage across two categories",
	},
	{
		ID:          "bulk-fractional",
		Name:        "Bulk by Weight",
		Description: "Fractional quantities with truncated intake cost and an emptied bin",
	},
	{
		ID:          "void-correction",
		Name:        "Void and Correct",
		Description: "A mistyped purchase and a double-counted distribution, both voided",
	},
}

var loaders = map[string]func(context.Context, *ledger.Ledger) error{
	"food-pantry":     loadFoodPantry,
	"bulk-fractional": loadBulkFractional,
	"void-correction": loadVoidCorrection,
}

// Scenarios returns the registered scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	copy(out, scenarios)
	return out
}

// LoadScenario loads a scenario into an empty ledger.
func LoadScenario(ctx context.Context, l *ledger.Ledger, id string) error {
	load, ok := loaders[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	items, err := l.ListItems(ctx, ledger.ItemFilter{})
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return fmt.Errorf("%w: %d items exist", ErrLedgerNotEmpty, len(items))
	}
	if err := load(ctx, l); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	return nil
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// LoadScenario loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := LoadScenario(r.Context(), h.Ledger, req.ScenarioID)
	switch {
	case errors.Is(err, ErrUnknownScenario):
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	case errors.Is(err, ErrLedgerNotEmpty):
		writeError(w, http.StatusConflict, "Ledger is not empty", err)
		return
	case err != nil:
		h.writeLedgerError(w, "Failed to load scenario", err)
		return
	}

	h.Log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seeder records a scenario's events in order, stopping at the first error.
type seeder struct {
	ctx   context.Context
	l     *ledger.Ledger
	start time.Time
	step  int
	err   error
}

func newSeeder(ctx context.Context, l *ledger.Ledger) *seeder {
	// one hour per step, starting a week back
	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -7)
	return &seeder{ctx: ctx, l: l, start: start}
}

func (s *seeder) meta(notes string) ledger.Meta {
	s.step++
	return ledger.Meta{
		Actor:      ScenarioActor,
		Notes:      notes,
		OccurredAt: s.start.Add(time.Duration(s.step) * time.Hour),
	}
}

func (s *seeder) category(name string, parent *ledger.CategoryID) ledger.CategoryID {
	if s.err != nil {
		return 0
	}
	c, err := s.l.CreateCategory(s.ctx, ledger.Category{Name: name, ParentID: parent})
	s.err = err
	return c.ID
}

func (s *seeder) item(sku, name string, category ledger.CategoryID, threshold int64) ledger.ItemID {
	if s.err != nil {
		return 0
	}
	in := ledger.NewItem{SKU: sku, Name: name, ReorderThreshold: &threshold}
	if category != 0 {
		in.CategoryID = &category
	}
	it, err := s.l.CreateItem(s.ctx, in)
	s.err = err
	return it.ID
}

func (s *seeder) record(id ledger.ItemID, ev ledger.Event, notes string) ledger.TransactionID {
	if s.err != nil {
		return 0
	}
	rc, err := s.l.Record(s.ctx, id, ev, s.meta(notes))
	s.err = err
	return rc.Transaction.ID
}

func (s *seeder) void(id ledger.TransactionID, reason string) {
	if s.err != nil {
		return
	}
	_, s.err = s.l.VoidTransaction(s.ctx, id, reason, s.meta(""))
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func loadFoodPantry(ctx context.Context, l *ledger.Ledger) error {
	s := newSeeder(ctx, l)

	food := s.category("Food", nil)
	canned := s.category("Canned", &food)
	produce := s.category("Produce", &food)

	beans := s.item("CAN-BEANS", "Black beans 15oz", canned, 24)
	soup := s.item("CAN-SOUP", "Tomato soup 10oz", canned, 24)
	apples := s.item("PRD-APPLE", "Apples (each)", produce, 50)

	s.record(beans, ledger.Purchase{Quantity: qty("100"), UnitCost: 89, Supplier: "Regional Food Bank"}, "monthly order")
	s.record(beans, ledger.Donation{Quantity: qty("48"), FairMarketValue: 99, Donor: "St. Mark's food drive"}, "")
	s.record(soup, ledger.Purchase{Quantity: qty("60"), UnitCost: 125, Supplier: "Regional Food Bank"}, "monthly order")
	s.record(apples, ledger.Donation{Quantity: qty("120"), FairMarketValue: 45, Donor: "Hillside Orchard"}, "")
	s.record(apples, ledger.Purchase{Quantity: qty("40"), UnitCost: 60, Supplier: "Farmers market"}, "")

	s.record(beans, ledger.Distribution{Quantity: qty("36"), Reason: ledger.ReasonClient}, "Tuesday pantry")
	s.record(soup, ledger.Distribution{Quantity: qty("42"), Reason: ledger.ReasonClient}, "Tuesday pantry")
	s.record(apples, ledger.Distribution{Quantity: qty("85"), Reason: ledger.ReasonClient}, "Tuesday pantry")
	s.record(apples, ledger.Distribution{Quantity: qty("18"), Reason: ledger.ReasonSpoilage}, "bruised")
	s.record(soup, ledger.Distribution{Quantity: qty("4"), Reason: ledger.ReasonInternal}, "volunteer lunch")

	return s.err
}

func loadBulkFractional(ctx context.Context, l *ledger.Ledger) error {
	s := newSeeder(ctx, l)

	bulk := s.category("Bulk", nil)
	rice := s.item("BLK-RICE-KG", "Rice (kg)", bulk, 20)
	oats := s.item("BLK-OATS-KG", "Rolled oats (kg)", bulk, 10)

	// 2.5 kg at $3.33 costs 832.5 cents; intake keeps 832
	s.record(rice, ledger.Purchase{Quantity: qty("2.5"), UnitCost: 333}, "sample sack")
	s.record(rice, ledger.Purchase{Quantity: qty("45.75"), UnitCost: 210, Supplier: "Grain Co-op"}, "")
	s.record(rice, ledger.Distribution{Quantity: qty("12.125"), Reason: ledger.ReasonClient}, "family boxes")

	s.record(oats, ledger.Purchase{Quantity: qty("1"), UnitCost: 100}, "")
	s.record(oats, ledger.Purchase{Quantity: qty("2"), UnitCost: 50}, "")
	// round(3 x 67) = 201 is capped at the 200 held
	s.record(oats, ledger.Distribution{Quantity: qty("3"), Reason: ledger.ReasonClient}, "")

	return s.err
}

func loadVoidCorrection(ctx context.Context, l *ledger.Ledger) error {
	s := newSeeder(ctx, l)

	hygiene := s.category("Hygiene", nil)
	soap := s.item("HYG-SOAP", "Bar soap", hygiene, 30)

	s.record(soap, ledger.Purchase{Quantity: qty("200"), UnitCost: 75, Supplier: "Wholesale Club"}, "")
	typo := s.record(soap, ledger.Purchase{Quantity: qty("1000"), UnitCost: 75, Supplier: "Wholesale Club"}, "")
	s.void(typo, "quantity typed with an extra zero")
	s.record(soap, ledger.Purchase{Quantity: qty("100"), UnitCost: 75, Supplier: "Wholesale Club"}, "")

	s.record(soap, ledger.Distribution{Quantity: qty("40"), Reason: ledger.ReasonClient}, "")
	twice := s.record(soap, ledger.Distribution{Quantity: qty("40"), Reason: ledger.ReasonClient}, "")
	s.void(twice, "same pickup entered twice")

	return s.err
}
