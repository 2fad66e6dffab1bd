package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/fulfillment-service/internal/domain"
	"github.com/wms-platform/fulfillment-service/pkg/errors"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// ShelfService maintains the shelf tree of each warehouse
type ShelfService struct {
	shelves   domain.ShelfRepository
	stock     domain.StockRepository
	routes    domain.RouteRepository
	sequences domain.SequenceGenerator
	events    EventSink
	ids       IDGenerator
	cache     StockCache
	tx        Transactor
	metrics   *metrics.Metrics
	logger    *logging.Logger
	clock     Clock
}

// NewShelfService creates a new ShelfService
func NewShelfService(deps Dependencies) *ShelfService {
	deps = deps.withDefaults()
	return &ShelfService{
		shelves:   deps.Shelves,
		stock:     deps.Stock,
		routes:    deps.Routes,
		sequences: deps.Sequences,
		events:    deps.Events,
		ids:       deps.IDs,
		cache:     deps.Cache,
		tx:        deps.Transactor,
		metrics:   deps.Metrics,
		logger:    deps.Logger.WithComponent("shelves"),
		clock:     deps.Clock,
	}
}

func (s *ShelfService) find(ctx context.Context, shelfID string) (*domain.Shelf, error) {
	shelf, err := s.shelves.FindByID(ctx, shelfID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get shelf", "shelfId", shelfID)
		return nil, fmt.Errorf("failed to get shelf: %w", err)
	}
	if shelf == nil {
		return nil, errors.ErrNotFoundWithID("shelf", shelfID)
	}
	return shelf, nil
}

// loadTree loads the warehouse tree that contains shelfID
func (s *ShelfService) loadTree(ctx context.Context, shelfID string) (*domain.ShelfTree, *domain.Shelf, error) {
	shelf, err := s.find(ctx, shelfID)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.shelves.FindByWarehouse(ctx, shelf.WarehouseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load shelf tree: %w", err)
	}
	tree := domain.NewShelfTree(all)
	node, ok := tree.Get(shelfID)
	if !ok {
		return nil, nil, errors.ErrNotFoundWithID("shelf", shelfID)
	}
	return tree, node, nil
}

// Create adds a shelf. The global slot comes from the warehouse counter
// unless the command pins one.
func (s *ShelfService) Create(ctx context.Context, cmd CreateShelfCommand) (*ShelfDTO, error) {
	if !cmd.Type.IsValid() {
		return nil, toAppError(domain.ErrInvalidShelfType)
	}

	var created *domain.Shelf
	err := inTransaction(ctx, s.tx, "shelf.create", nil, func(ctx context.Context) error {
		var parent *domain.Shelf
		if cmd.ParentID != nil && *cmd.ParentID != "" {
			p, err := s.find(ctx, *cmd.ParentID)
			if err != nil {
				return err
			}
			parent = p
		}

		var slot int64
		if cmd.GlobalSlot != nil {
			slot = *cmd.GlobalSlot
		} else {
			next, err := s.sequences.Next(ctx, domain.ShelfSlotCounter(cmd.WarehouseID))
			if err != nil {
				return fmt.Errorf("failed to allocate shelf slot: %w", err)
			}
			slot = next
		}

		shelf, err := domain.NewShelf(s.ids.NewID(), parent, domain.ShelfAttributes{
			Name:         cmd.Name,
			Barcode:      cmd.Barcode,
			Type:         cmd.Type,
			WarehouseID:  cmd.WarehouseID,
			GlobalSlot:   slot,
			IsSellable:   cmd.IsSellable,
			IsReservable: cmd.IsReservable,
		}, s.clock())
		if err != nil {
			return err
		}
		if err := s.shelves.Insert(ctx, shelf); err != nil {
			return err
		}
		if parent != nil {
			// conflicts with a concurrent delete of the parent
			if err := s.shelves.UpdateTree(ctx, nil, []string{parent.ID}); err != nil {
				return err
			}
		}
		if err := appendEvents(ctx, s.events, shelf.GetDomainEvents()); err != nil {
			return err
		}
		created = shelf
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.logger.WithContext(ctx).Info("Created shelf",
		"shelfId", created.ID,
		"barcode", created.Barcode,
		"type", created.Type,
		"path", created.Path,
	)
	return ToShelfDTO(created), nil
}

// Get returns one shelf
func (s *ShelfService) Get(ctx context.Context, shelfID string) (*ShelfDTO, error) {
	shelf, err := s.find(ctx, shelfID)
	if err != nil {
		return nil, err
	}
	return ToShelfDTO(shelf), nil
}

// Update renames a shelf and/or changes its flags. A rename recomputes the
// path of the whole subtree.
func (s *ShelfService) Update(ctx context.Context, cmd UpdateShelfCommand) (*ShelfDTO, error) {
	var updated *domain.Shelf
	err := inTransaction(ctx, s.tx, "shelf.update", tracing.ShelfAttributes(cmd.ShelfID), func(ctx context.Context) error {
		tree, shelf, err := s.loadTree(ctx, cmd.ShelfID)
		if err != nil {
			return err
		}
		now := s.clock()

		var changed []*domain.Shelf
		if cmd.Name != nil {
			if changed, err = tree.Rename(cmd.ShelfID, *cmd.Name, now); err != nil {
				return err
			}
		}
		if shelf.SetFlags(cmd.IsSellable, cmd.IsReservable, now) && len(changed) == 0 {
			changed = []*domain.Shelf{shelf}
		}
		updated = shelf
		if len(changed) == 0 {
			return nil
		}

		if err := s.shelves.UpdateTree(ctx, changed, nil); err != nil {
			return err
		}
		return s.events.Append(ctx, &domain.ShelfUpdatedEvent{
			ShelfID:         shelf.ID,
			WarehouseID:     shelf.WarehouseID,
			Name:            shelf.Name,
			Path:            shelf.Path,
			IsSellable:      shelf.IsSellable,
			IsReservable:    shelf.IsReservable,
			AffectedShelves: len(changed),
			UpdatedAt:       now,
		})
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.logger.WithContext(ctx).Info("Updated shelf", "shelfId", updated.ID, "path", updated.Path)
	return ToShelfDTO(updated), nil
}

// Move reparents a shelf. The new parent's ancestor chain is version-bumped
// so two concurrent moves that would together form a cycle cannot both commit.
func (s *ShelfService) Move(ctx context.Context, cmd MoveShelfCommand) (*ShelfDTO, error) {
	newParent := cmd.NewParentID
	if newParent != nil && *newParent == "" {
		newParent = nil
	}

	var (
		moved    *domain.Shelf
		affected []string
	)
	err := inTransaction(ctx, s.tx, "shelf.move", tracing.ShelfAttributes(cmd.ShelfID), func(ctx context.Context) error {
		tree, shelf, err := s.loadTree(ctx, cmd.ShelfID)
		if err != nil {
			return err
		}
		if sameParent(shelf.ParentID, newParent) {
			moved, affected = shelf, nil
			return nil
		}

		oldAncestors := append([]string(nil), shelf.AncestorIDs...)
		changed, err := tree.Move(cmd.ShelfID, newParent, s.clock())
		if err != nil {
			return err
		}

		var touched []string
		if newParent != nil {
			touched = append(touched, *newParent)
			for _, a := range tree.Ancestors(*newParent) {
				touched = append(touched, a.ID)
			}
		}
		if err := s.shelves.UpdateTree(ctx, changed, touched); err != nil {
			return err
		}
		if err := appendEvents(ctx, s.events, shelf.GetDomainEvents()); err != nil {
			return err
		}
		moved = shelf
		affected = append(oldAncestors, shelf.AncestorIDs...)
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.invalidate(ctx, affected)
	s.logger.WithContext(ctx).Info("Moved shelf", "shelfId", moved.ID, "path", moved.Path)
	return ToShelfDTO(moved), nil
}

func sameParent(current, next *string) bool {
	if current == nil || next == nil {
		return current == nil && next == nil
	}
	return *current == *next
}

// Delete removes an empty leaf shelf that no active route picked from or
// staged on. Stock anywhere in the subtree is reported before children, so
// the operator sees what still needs moving.
func (s *ShelfService) Delete(ctx context.Context, shelfID, userID string) error {
	var deleted *domain.Shelf
	err := inTransaction(ctx, s.tx, "shelf.delete", tracing.ShelfAttributes(shelfID), func(ctx context.Context) error {
		shelf, err := s.find(ctx, shelfID)
		if err != nil {
			return err
		}

		subtree, err := s.shelves.SubtreeIDs(ctx, shelfID)
		if err != nil {
			return fmt.Errorf("failed to load subtree: %w", err)
		}
		total, err := s.stock.SumByShelves(ctx, subtree)
		if err != nil {
			return fmt.Errorf("failed to sum subtree stock: %w", err)
		}
		if total > 0 {
			return &domain.ShelfNotEmptyError{ShelfID: shelfID, Quantity: total}
		}

		children, err := s.shelves.CountChildren(ctx, shelfID)
		if err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if children > 0 {
			return &domain.ShelfHasChildrenError{ShelfID: shelfID, Children: children}
		}

		routeID, err := s.routes.ActiveRouteByPickShelf(ctx, shelfID)
		if err != nil {
			return fmt.Errorf("failed to check active routes: %w", err)
		}
		if routeID != "" {
			return &domain.ShelfInUseError{ShelfID: shelfID, RouteID: routeID}
		}

		if err := s.shelves.Delete(ctx, shelfID); err != nil {
			return err
		}
		if err := s.events.Append(ctx, &domain.ShelfDeletedEvent{
			ShelfID:     shelf.ID,
			WarehouseID: shelf.WarehouseID,
			Barcode:     shelf.Barcode,
			DeletedAt:   s.clock(),
		}); err != nil {
			return err
		}
		deleted = shelf
		return nil
	})
	if err != nil {
		return toAppError(err)
	}

	s.invalidate(ctx, append([]string{deleted.ID}, deleted.AncestorIDs...))
	s.logger.Audit(ctx, "delete", "shelf", shelfID, userID, map[string]any{"barcode": deleted.Barcode, "path": deleted.Path})
	return nil
}

// Tree returns the nested shelf tree of a warehouse
func (s *ShelfService) Tree(ctx context.Context, warehouseID string) ([]ShelfNodeDTO, error) {
	all, err := s.shelves.FindByWarehouse(ctx, warehouseID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load shelf tree", "warehouseId", warehouseID)
		return nil, fmt.Errorf("failed to load shelf tree: %w", err)
	}
	return ToShelfNodeDTOs(domain.NewShelfTree(all).Nest()), nil
}

// TotalStock sums the stock of a shelf and all its descendants. Totals are
// cached until a ledger write or a move touches the subtree.
func (s *ShelfService) TotalStock(ctx context.Context, shelfID string) (*ShelfTotalStockDTO, error) {
	if _, err := s.find(ctx, shelfID); err != nil {
		return nil, err
	}

	// the generation is read before summing; a commit that lands in between
	// bumps it and the stale sum is not cached
	cacheable := false
	var generation int64
	if s.cache != nil {
		total, ok, gen, err := s.cache.GetSubtreeTotal(ctx, shelfID)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Stock cache unavailable", "shelfId", shelfID)
		}
		s.metrics.RecordStockCacheLookup(ok)
		if ok {
			return &ShelfTotalStockDTO{ShelfID: shelfID, Total: total, Cached: true}, nil
		}
		cacheable, generation = err == nil, gen
	}

	subtree, err := s.shelves.SubtreeIDs(ctx, shelfID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree: %w", err)
	}
	total, err := s.stock.SumByShelves(ctx, subtree)
	if err != nil {
		return nil, fmt.Errorf("failed to sum subtree stock: %w", err)
	}

	if cacheable {
		stored, err := s.cache.SetSubtreeTotal(ctx, shelfID, total, generation)
		switch {
		case err != nil:
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to cache subtree total", "shelfId", shelfID)
		case !stored:
			s.logger.WithContext(ctx).Debug("Subtree changed while summing, total not cached", "shelfId", shelfID)
		}
	}
	return &ShelfTotalStockDTO{ShelfID: shelfID, Total: total}, nil
}

func (s *ShelfService) invalidate(ctx context.Context, shelfIDs []string) {
	if s.cache == nil || len(shelfIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, shelfIDs...); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate stock cache", "shelves", len(shelfIDs))
	}
}
