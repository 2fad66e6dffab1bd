package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ShelfType classifies what a shelf is used for
type ShelfType string

const (
	ShelfTypeNormal        ShelfType = "NORMAL"
	ShelfTypeDamaged       ShelfType = "DAMAGED"
	ShelfTypePacking       ShelfType = "PACKING"
	ShelfTypePicking       ShelfType = "PICKING"
	ShelfTypeReceiving     ShelfType = "RECEIVING"
	ShelfTypeReturn        ShelfType = "RETURN"
	ShelfTypeReturnDamaged ShelfType = "RETURN_DAMAGED"
)

// IsValid checks if the shelf type is valid
func (t ShelfType) IsValid() bool {
	switch t {
	case ShelfTypeNormal, ShelfTypeDamaged, ShelfTypePacking, ShelfTypePicking,
		ShelfTypeReceiving, ShelfTypeReturn, ShelfTypeReturnDamaged:
		return true
	default:
		return false
	}
}

// DefaultFlags returns the sellable and reservable defaults for the type.
// Only stock on NORMAL and PICKING shelves can be sold or reserved.
func (t ShelfType) DefaultFlags() (sellable, reservable bool) {
	switch t {
	case ShelfTypeNormal, ShelfTypePicking:
		return true, true
	default:
		return false, false
	}
}

// PathSeparator joins ancestor names in a shelf path
const PathSeparator = "/"

// DefaultShelfBarcode derives a barcode from a global slot
func DefaultShelfBarcode(globalSlot int64) string {
	return fmt.Sprintf("SH%06d", globalSlot)
}

// Shelf is a node in a warehouse location tree
type Shelf struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Barcode      string    `bson:"barcode" json:"barcode"`
	Type         ShelfType `bson:"type" json:"type"`
	WarehouseID  string    `bson:"warehouseId" json:"warehouseId"`
	ParentID     *string   `bson:"parentId" json:"parentId"`
	AncestorIDs  []string  `bson:"ancestorIds" json:"ancestorIds"`
	Path         string    `bson:"path" json:"path"`
	GlobalSlot   int64     `bson:"globalSlot" json:"globalSlot"`
	IsSellable   bool      `bson:"isSellable" json:"isSellable"`
	IsReservable bool      `bson:"isReservable" json:"isReservable"`
	Version      int64     `bson:"version" json:"version"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// ShelfAttributes carries the operator supplied fields of a new shelf.
// Nil flags fall back to the type defaults; an empty barcode falls back to the slot barcode.
type ShelfAttributes struct {
	Name         string
	Barcode      string
	Type         ShelfType
	WarehouseID  string
	GlobalSlot   int64
	IsSellable   *bool
	IsReservable *bool
}

// NewShelf creates a shelf under parent (nil for a root shelf)
func NewShelf(id string, parent *Shelf, attrs ShelfAttributes, now time.Time) (*Shelf, error) {
	name := strings.TrimSpace(attrs.Name)
	if name == "" {
		return nil, ErrInvalidShelfName
	}
	if !attrs.Type.IsValid() {
		return nil, ErrInvalidShelfType
	}
	if parent != nil && parent.WarehouseID != attrs.WarehouseID {
		return nil, ErrParentInOtherWarehouse
	}

	sellable, reservable := attrs.Type.DefaultFlags()
	if attrs.IsSellable != nil {
		sellable = *attrs.IsSellable
	}
	if attrs.IsReservable != nil {
		reservable = *attrs.IsReservable
	}

	barcode := strings.TrimSpace(attrs.Barcode)
	if barcode == "" {
		barcode = DefaultShelfBarcode(attrs.GlobalSlot)
	}

	shelf := &Shelf{
		ID:           id,
		Name:         name,
		Barcode:      barcode,
		Type:         attrs.Type,
		WarehouseID:  attrs.WarehouseID,
		GlobalSlot:   attrs.GlobalSlot,
		IsSellable:   sellable,
		IsReservable: reservable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	shelf.attachTo(parent)

	shelf.AddDomainEvent(&ShelfCreatedEvent{
		ShelfID:     shelf.ID,
		WarehouseID: shelf.WarehouseID,
		Name:        shelf.Name,
		Barcode:     shelf.Barcode,
		Type:        string(shelf.Type),
		ParentID:    shelf.parentValue(),
		Path:        shelf.Path,
		GlobalSlot:  shelf.GlobalSlot,
		CreatedAt:   now,
	})
	return shelf, nil
}

// attachTo recomputes parentId, ancestor chain and path from parent
func (s *Shelf) attachTo(parent *Shelf) {
	if parent == nil {
		s.ParentID = nil
		s.AncestorIDs = []string{}
		s.Path = s.Name
		return
	}
	parentID := parent.ID
	s.ParentID = &parentID
	s.AncestorIDs = append(append(make([]string, 0, len(parent.AncestorIDs)+1), parent.AncestorIDs...), parent.ID)
	s.Path = parent.Path + PathSeparator + s.Name
}

func (s *Shelf) parentValue() string {
	if s.ParentID == nil {
		return ""
	}
	return *s.ParentID
}

// IsPickSource reports whether picked stock may be drawn from the shelf
func (s *Shelf) IsPickSource() bool {
	return s.Type == ShelfTypePicking || s.Type == ShelfTypeNormal
}

// SetFlags updates sellable and reservable; nil leaves a flag unchanged.
func (s *Shelf) SetFlags(sellable, reservable *bool, now time.Time) bool {
	changed := false
	if sellable != nil && *sellable != s.IsSellable {
		s.IsSellable = *sellable
		changed = true
	}
	if reservable != nil && *reservable != s.IsReservable {
		s.IsReservable = *reservable
		changed = true
	}
	if changed {
		s.UpdatedAt = now
	}
	return changed
}

// AddDomainEvent adds a domain event
func (s *Shelf) AddDomainEvent(event DomainEvent) {
	s.DomainEvents = append(s.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (s *Shelf) ClearDomainEvents() {
	s.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (s *Shelf) GetDomainEvents() []DomainEvent {
	return s.DomainEvents
}

// ShelfTree is an arena over the shelves of one warehouse, indexed by id.
// Mutations recompute the materialized path of every affected node and
// report the nodes that must be persisted.
type ShelfTree struct {
	nodes    map[string]*Shelf
	children map[string][]string
	roots    []string
}

// ShelfNode is one node of the nested tree view
type ShelfNode struct {
	Shelf    *Shelf
	Children []*ShelfNode
}

// NewShelfTree indexes shelves. Shelves whose parent is not in the set are treated as roots.
func NewShelfTree(shelves []*Shelf) *ShelfTree {
	t := &ShelfTree{
		nodes:    make(map[string]*Shelf, len(shelves)),
		children: make(map[string][]string),
	}
	for _, s := range shelves {
		t.nodes[s.ID] = s
	}
	for _, s := range shelves {
		if s.ParentID != nil {
			if _, ok := t.nodes[*s.ParentID]; ok {
				t.children[*s.ParentID] = append(t.children[*s.ParentID], s.ID)
				continue
			}
		}
		t.roots = append(t.roots, s.ID)
	}
	for id := range t.children {
		t.sortIDs(t.children[id])
	}
	t.sortIDs(t.roots)
	return t
}

func (t *ShelfTree) sortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]], t.nodes[ids[j]]
		if a.GlobalSlot != b.GlobalSlot {
			return a.GlobalSlot < b.GlobalSlot
		}
		return a.Name < b.Name
	})
}

// Get returns a shelf by id
func (t *ShelfTree) Get(id string) (*Shelf, bool) {
	s, ok := t.nodes[id]
	return s, ok
}

// Len returns the number of shelves in the arena
func (t *ShelfTree) Len() int {
	return len(t.nodes)
}

// IsDescendant reports whether id lies strictly below ancestorID, walking parent links up from id.
func (t *ShelfTree) IsDescendant(ancestorID, id string) bool {
	seen := make(map[string]struct{})
	current, ok := t.nodes[id]
	for ok && current.ParentID != nil {
		parentID := *current.ParentID
		if parentID == ancestorID {
			return true
		}
		if _, loop := seen[parentID]; loop {
			return false
		}
		seen[parentID] = struct{}{}
		current, ok = t.nodes[parentID]
	}
	return false
}

// Subtree returns id and all of its descendants in pre-order
func (t *ShelfTree) Subtree(id string) []*Shelf {
	root, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := []*Shelf{root}
	for _, childID := range t.children[id] {
		out = append(out, t.Subtree(childID)...)
	}
	return out
}

// Ancestors returns the chain from the root down to the shelf's parent
func (t *ShelfTree) Ancestors(id string) []*Shelf {
	s, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Shelf, 0, len(s.AncestorIDs))
	for _, a := range s.AncestorIDs {
		if node, ok := t.nodes[a]; ok {
			out = append(out, node)
		}
	}
	return out
}

// Move reparents shelfID under newParentID (nil makes it a root) and
// recomputes path and ancestors for the moved subtree. It returns the
// shelves whose documents changed, moved node first.
func (t *ShelfTree) Move(shelfID string, newParentID *string, now time.Time) ([]*Shelf, error) {
	shelf, ok := t.nodes[shelfID]
	if !ok {
		return nil, ErrShelfNotFound
	}

	var parent *Shelf
	if newParentID != nil {
		if *newParentID == shelfID || t.IsDescendant(shelfID, *newParentID) {
			return nil, &CyclicReparentError{ShelfID: shelfID, NewParentID: *newParentID}
		}
		parent, ok = t.nodes[*newParentID]
		if !ok {
			return nil, ErrShelfNotFound
		}
		if parent.WarehouseID != shelf.WarehouseID {
			return nil, ErrParentInOtherWarehouse
		}
	}

	oldParent := shelf.parentValue()
	t.detach(shelf)
	shelf.attachTo(parent)
	if parent != nil {
		t.children[parent.ID] = append(t.children[parent.ID], shelf.ID)
		t.sortIDs(t.children[parent.ID])
	} else {
		t.roots = append(t.roots, shelf.ID)
		t.sortIDs(t.roots)
	}

	changed := t.refreshDescendants(shelf, now)

	shelf.AddDomainEvent(&ShelfMovedEvent{
		ShelfID:         shelf.ID,
		WarehouseID:     shelf.WarehouseID,
		OldParentID:     oldParent,
		NewParentID:     shelf.parentValue(),
		Path:            shelf.Path,
		AffectedShelves: len(changed),
		MovedAt:         now,
	})
	return changed, nil
}

// Rename changes a shelf name and recomputes the path of its subtree
func (t *ShelfTree) Rename(shelfID, name string, now time.Time) ([]*Shelf, error) {
	shelf, ok := t.nodes[shelfID]
	if !ok {
		return nil, ErrShelfNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidShelfName
	}
	if name == shelf.Name {
		return nil, nil
	}

	shelf.Name = name
	var parent *Shelf
	if shelf.ParentID != nil {
		parent = t.nodes[*shelf.ParentID]
	}
	shelf.attachTo(parent)
	return t.refreshDescendants(shelf, now), nil
}

// Nest builds the nested view, children ordered by global slot
func (t *ShelfTree) Nest() []*ShelfNode {
	out := make([]*ShelfNode, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.nest(id))
	}
	return out
}

func (t *ShelfTree) nest(id string) *ShelfNode {
	node := &ShelfNode{Shelf: t.nodes[id], Children: make([]*ShelfNode, 0, len(t.children[id]))}
	for _, childID := range t.children[id] {
		node.Children = append(node.Children, t.nest(childID))
	}
	return node
}

func (t *ShelfTree) detach(shelf *Shelf) {
	if shelf.ParentID == nil {
		t.roots = removeID(t.roots, shelf.ID)
		return
	}
	t.children[*shelf.ParentID] = removeID(t.children[*shelf.ParentID], shelf.ID)
}

// refreshDescendants stamps root and re-attaches every descendant to its
// (already refreshed) parent, top down.
func (t *ShelfTree) refreshDescendants(root *Shelf, now time.Time) []*Shelf {
	root.UpdatedAt = now
	changed := []*Shelf{root}
	for _, childID := range t.children[root.ID] {
		child := t.nodes[childID]
		child.attachTo(root)
		changed = append(changed, t.refreshDescendants(child, now)...)
	}
	return changed
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
