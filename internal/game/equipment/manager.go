package equipment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/game/catalog"
	"github.com/cory-johannsen/fightsheet/internal/game/player"
	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// Caller input errors.
var (
	ErrUnknownItem           = errors.New("equipment: unknown item")
	ErrNotEquippable         = errors.New("equipment: item cannot be equipped")
	ErrInsufficientInventory = errors.New("equipment: not enough copies in inventory")
	ErrNoEmptySlot           = errors.New("equipment: no empty slot")
	ErrInvalidSlot           = errors.New("equipment: invalid slot")
	ErrSlotEmpty             = errors.New("equipment: slot is empty")
	ErrInvalidLoadoutShape   = errors.New("equipment: loadout must have exactly 3 slots")
)

var callerErrors = []error{
	ErrUnknownItem, ErrNotEquippable, ErrInsufficientInventory, ErrNoEmptySlot,
	ErrInvalidSlot, ErrSlotEmpty, ErrInvalidLoadoutShape,
}

// IsCallerError reports whether err is one of the caller input errors above.
func IsCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Manager reads and writes loadouts and the inventory counts they consume.
//
// Equipping takes one unit out of the inventory count of the item's display
// name and unequipping puts it back, so the count never includes worn copies.
type Manager struct {
	store   storage.Store
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: store, cat and logger must be non-nil.
func NewManager(store storage.Store, cat *catalog.Catalog, logger *zap.Logger) *Manager {
	return &Manager{store: store, catalog: cat, logger: logger}
}

// GetLoadout returns the player's loadout, falling back to the legacy field.
// It never writes.
//
// Postcondition: the result always has exactly SlotCount slots.
func (m *Manager) GetLoadout(ctx context.Context, id string) (Loadout, error) {
	doc, err := m.store.Get(ctx, id, player.EquipsPath, player.LegacyEquipsPath)
	if errors.Is(err, storage.ErrNotFound) {
		return Loadout{}, nil
	}
	if err != nil {
		return Loadout{}, fmt.Errorf("equipment: Manager.GetLoadout: %w", err)
	}
	return loadoutOf(doc), nil
}

// SetLoadout persists slots verbatim.
//
// Precondition: len(slots) == SlotCount, else ErrInvalidLoadoutShape.
func (m *Manager) SetLoadout(ctx context.Context, id string, slots []string) error {
	if len(slots) != SlotCount {
		return fmt.Errorf("%w: got %d", ErrInvalidLoadoutShape, len(slots))
	}
	return m.writeLoadout(ctx, id, FromSlots(slots))
}

// Equip puts one copy of an item, named by key or display name, into a slot.
// With a nil slot the leftmost empty slot is used. An item already in an
// explicit slot is returned to inventory; equipping the item a slot already
// holds changes nothing.
//
// Postcondition: returns the occupied slot index; on error the loadout and
// inventory are unchanged.
func (m *Manager) Equip(ctx context.Context, id, item string, slot *int) (int, error) {
	def, ok := m.catalog.Find(item)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	if !def.Equippable {
		return 0, fmt.Errorf("%w: %s", ErrNotEquippable, def.Name)
	}

	doc, err := m.store.Get(ctx, id, player.ItemsPath, player.EquipsPath, player.LegacyEquipsPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("equipment: Manager.Equip: %w", err)
	}
	doc = storage.NewDocument(id, doc.Raw)
	loadout := loadoutOf(doc)

	if slot != nil && validSlot(*slot) && loadout[*slot] == def.Key {
		return *slot, nil
	}
	// Worn copies are already deducted from the count.
	if player.ItemCount(doc, def.Name) <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInsufficientInventory, def.Name)
	}

	target := loadout.FirstEmpty()
	if slot != nil {
		if !validSlot(*slot) {
			return 0, fmt.Errorf("%w: %d", ErrInvalidSlot, *slot)
		}
		target = *slot
	} else if target < 0 {
		return 0, ErrNoEmptySlot
	}

	deltas := map[string]float64{player.ItemCountPath(def.Name): -1}
	displaced := loadout[target]
	if displaced != "" {
		if prev, ok := m.catalog.Lookup(displaced); ok {
			deltas[player.ItemCountPath(prev.Name)]++
		} else {
			m.logger.Warn("displaced item not in catalog, not returned to inventory",
				zap.String("player", id),
				zap.String("item", displaced),
			)
		}
	}
	loadout[target] = def.Key

	if _, err := m.store.IncrementFields(ctx, id, deltas, nil); err != nil {
		return 0, fmt.Errorf("equipment: Manager.Equip: inventory: %w", err)
	}
	if err := m.writeLoadout(ctx, id, loadout); err != nil {
		return 0, err
	}
	m.logger.Debug("item equipped",
		zap.String("player", id),
		zap.String("item", def.Key),
		zap.Int("slot", target),
		zap.String("displaced", displaced),
	)
	return target, nil
}

// Unequip clears a slot and returns its item to inventory.
//
// Postcondition: returns the removed item key.
func (m *Manager) Unequip(ctx context.Context, id string, slot int) (string, error) {
	if !validSlot(slot) {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	loadout, err := m.GetLoadout(ctx, id)
	if err != nil {
		return "", err
	}
	key := loadout[slot]
	if key == "" {
		return "", fmt.Errorf("%w: %d", ErrSlotEmpty, slot)
	}
	loadout[slot] = ""

	// Loadout first: a failure between the two writes loses a copy rather
	// than duplicating one.
	if err := m.writeLoadout(ctx, id, loadout); err != nil {
		return "", err
	}
	if def, ok := m.catalog.Lookup(key); ok {
		if _, err := m.store.IncrementFields(ctx, id, map[string]float64{player.ItemCountPath(def.Name): 1}, nil); err != nil {
			return "", fmt.Errorf("equipment: Manager.Unequip: inventory: %w", err)
		}
	} else {
		m.logger.Warn("unequipped item not in catalog, not returned to inventory",
			zap.String("player", id),
			zap.String("item", key),
		)
	}
	m.logger.Debug("item unequipped",
		zap.String("player", id),
		zap.String("item", key),
		zap.Int("slot", slot),
	)
	return key, nil
}

// AggregateBonuses sums the stats and effects of every equipped item known
// to the catalog. It performs no I/O.
func (m *Manager) AggregateBonuses(l Loadout) Bonuses {
	return Aggregate(m.catalog, l)
}

// Aggregate sums the stats and effects of every item in l found in c.
// Unknown keys contribute nothing.
func Aggregate(c *catalog.Catalog, l Loadout) Bonuses {
	out := make(Bonuses)
	for _, key := range l {
		if key == "" {
			continue
		}
		def, ok := c.Lookup(key)
		if !ok {
			continue
		}
		for k, v := range def.Stats {
			out[k] += v
		}
		for k, v := range def.Effects {
			out[k] += v
		}
	}
	return out
}

// Catalog returns the catalog the manager resolves items against.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

func (m *Manager) writeLoadout(ctx context.Context, id string, l Loadout) error {
	err := m.store.SetFields(ctx, id, map[string]any{
		player.EquipsPath:       l.stored(),
		player.LegacyEquipsPath: storage.Unset,
	})
	if err != nil {
		return fmt.Errorf("equipment: Manager.writeLoadout: %w", err)
	}
	return nil
}

func loadoutOf(doc storage.Document) Loadout {
	if doc.Has(player.EquipsPath) {
		return parseLoadout(doc.Get(player.EquipsPath))
	}
	return parseLoadout(doc.Get(player.LegacyEquipsPath))
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < SlotCount
}
