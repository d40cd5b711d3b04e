// Package coa holds the chart of accounts as a flat arena of groups addressed by index.
package coa

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tallyerp/bookkeeping/internal/accounting"
	"github.com/tallyerp/bookkeeping/internal/shared"
)

const noParent = -1

// Chart is the ledger group tree plus the ledgers attached to it.
// Groups live in a slice in insertion order and reference their parent by index.
type Chart struct {
	groups    []accounting.LedgerGroup
	parents   []int
	groupIdx  map[uuid.UUID]int
	ledgers   []accounting.Ledger
	ledgerIdx map[uuid.UUID]int
}

// GroupNode is the nested view of one group used by tree renderers.
type GroupNode struct {
	Group    accounting.LedgerGroup `json:"group"`
	Children []GroupNode            `json:"children"`
	Ledgers  []accounting.Ledger    `json:"ledgers"`
}

// Empty returns a chart with no groups.
func Empty() *Chart {
	return &Chart{
		groupIdx:  map[uuid.UUID]int{},
		ledgerIdx: map[uuid.UUID]int{},
	}
}

// New builds a chart from flat rows as loaded from storage.
// Groups may appear in any order; parents are resolved after all rows are indexed.
func New(groups []accounting.LedgerGroup, ledgers []accounting.Ledger) (*Chart, error) {
	c := Empty()
	for _, g := range groups {
		if _, dup := c.groupIdx[g.ID]; dup {
			return nil, &shared.ConflictError{Reason: fmt.Sprintf("duplicate group %s", g.ID)}
		}
		c.groupIdx[g.ID] = len(c.groups)
		c.groups = append(c.groups, cloneGroup(g))
		c.parents = append(c.parents, noParent)
	}
	for i, g := range c.groups {
		if g.ParentID == nil {
			continue
		}
		p, ok := c.groupIdx[*g.ParentID]
		if !ok {
			return nil, &shared.NotFoundError{Kind: "ledger group", ID: g.ParentID.String()}
		}
		c.parents[i] = p
	}
	for i := range c.groups {
		if c.cyclic(i) {
			return nil, &shared.ConflictError{Reason: fmt.Sprintf("group %q is its own ancestor", c.groups[i].Name)}
		}
	}
	for _, l := range ledgers {
		if err := c.AddLedger(l); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// cyclic walks up from i; a chain longer than the arena means a loop.
func (c *Chart) cyclic(i int) bool {
	steps := 0
	for p := c.parents[i]; p != noParent; p = c.parents[p] {
		steps++
		if p == i || steps > len(c.groups) {
			return true
		}
	}
	return false
}

// Clone copies the chart so a candidate mutation can be validated without touching the original.
func (c *Chart) Clone() *Chart {
	out := Empty()
	out.groups = make([]accounting.LedgerGroup, len(c.groups))
	for i, g := range c.groups {
		out.groups[i] = cloneGroup(g)
	}
	out.parents = append([]int(nil), c.parents...)
	out.ledgers = append([]accounting.Ledger(nil), c.ledgers...)
	for k, v := range c.groupIdx {
		out.groupIdx[k] = v
	}
	for k, v := range c.ledgerIdx {
		out.ledgerIdx[k] = v
	}
	return out
}

func cloneGroup(g accounting.LedgerGroup) accounting.LedgerGroup {
	if g.ParentID != nil {
		id := *g.ParentID
		g.ParentID = &id
	}
	return g
}

func validateGroup(g accounting.LedgerGroup) error {
	verr := &shared.ValidationError{}
	if g.ID == uuid.Nil {
		verr.Add("group id is required")
	}
	if strings.TrimSpace(g.Name) == "" {
		verr.Add("group name is required")
	}
	if !g.Nature.Valid() {
		verr.Add("group nature %q is not supported", g.Nature)
	}
	return verr.Err()
}

// AddGroup appends a new group under an existing parent, or as a root when ParentID is nil.
// A child group carries the nature of its parent.
func (c *Chart) AddGroup(g accounting.LedgerGroup) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	if _, dup := c.groupIdx[g.ID]; dup {
		return &shared.ConflictError{Reason: fmt.Sprintf("group %s already exists", g.ID)}
	}
	if err := c.uniqueGroupName(g); err != nil {
		return err
	}
	parent := noParent
	if g.ParentID != nil {
		p, ok := c.groupIdx[*g.ParentID]
		if !ok {
			return &shared.NotFoundError{Kind: "ledger group", ID: g.ParentID.String()}
		}
		if err := c.natureMatches(g, p); err != nil {
			return err
		}
		parent = p
	}
	c.groupIdx[g.ID] = len(c.groups)
	c.groups = append(c.groups, cloneGroup(g))
	c.parents = append(c.parents, parent)
	return nil
}

// UpdateGroup replaces name, nature and flags of an existing group and reparents it when needed.
// Nothing changes unless every check passes.
func (c *Chart) UpdateGroup(g accounting.LedgerGroup) error {
	if err := validateGroup(g); err != nil {
		return err
	}
	i, ok := c.groupIdx[g.ID]
	if !ok {
		return &shared.NotFoundError{Kind: "ledger group", ID: g.ID.String()}
	}
	if c.groups[i].IsSystem {
		return &shared.ConflictError{Reason: fmt.Sprintf("system group %q cannot be modified", c.groups[i].Name)}
	}
	if g.IsSystem {
		return &shared.ConflictError{Reason: "groups cannot be promoted to system groups"}
	}
	if err := c.uniqueGroupName(g); err != nil {
		return err
	}
	p, err := c.parentFor(i, g.ParentID)
	if err != nil {
		return err
	}
	if p != noParent {
		if err := c.natureMatches(g, p); err != nil {
			return err
		}
	}
	for j, parent := range c.parents {
		if parent == i && c.groups[j].Nature != g.Nature {
			return shared.NewValidationError(fmt.Sprintf("group nature %s must match sub-group %q (%s)",
				g.Nature, c.groups[j].Name, c.groups[j].Nature))
		}
	}
	c.groups[i] = cloneGroup(g)
	c.setParent(i, p)
	return nil
}

func (c *Chart) uniqueGroupName(g accounting.LedgerGroup) error {
	name := strings.TrimSpace(g.Name)
	for _, other := range c.groups {
		if other.ID != g.ID && strings.EqualFold(strings.TrimSpace(other.Name), name) {
			return &shared.ConflictError{Reason: fmt.Sprintf("group name %q is already used", name)}
		}
	}
	return nil
}

func (c *Chart) natureMatches(g accounting.LedgerGroup, parent int) error {
	if pn := c.groups[parent].Nature; pn != g.Nature {
		return shared.NewValidationError(fmt.Sprintf("group nature %s must match parent %q (%s)",
			g.Nature, c.groups[parent].Name, pn))
	}
	return nil
}

// UpsertGroup adds g when unknown, otherwise updates it.
func (c *Chart) UpsertGroup(g accounting.LedgerGroup) error {
	if _, ok := c.groupIdx[g.ID]; ok {
		return c.UpdateGroup(g)
	}
	return c.AddGroup(g)
}

// RenameGroup changes only the display name.
func (c *Chart) RenameGroup(id uuid.UUID, name string) error {
	g, ok := c.Group(id)
	if !ok {
		return &shared.NotFoundError{Kind: "ledger group", ID: id.String()}
	}
	g.Name = name
	return c.UpdateGroup(g)
}

// Reparent moves a group. The ancestor chain of the new parent must not contain the group
// and the new parent must share its nature.
func (c *Chart) Reparent(id uuid.UUID, parentID *uuid.UUID) error {
	i, ok := c.groupIdx[id]
	if !ok {
		return &shared.NotFoundError{Kind: "ledger group", ID: id.String()}
	}
	if c.groups[i].IsSystem {
		return &shared.ConflictError{Reason: fmt.Sprintf("system group %q cannot be moved", c.groups[i].Name)}
	}
	p, err := c.parentFor(i, parentID)
	if err != nil {
		return err
	}
	if p != noParent {
		if err := c.natureMatches(c.groups[i], p); err != nil {
			return err
		}
	}
	c.setParent(i, p)
	return nil
}

// parentFor resolves the arena index of a prospective parent of group i.
func (c *Chart) parentFor(i int, parentID *uuid.UUID) (int, error) {
	if parentID == nil {
		return noParent, nil
	}
	p, ok := c.groupIdx[*parentID]
	if !ok {
		return noParent, &shared.NotFoundError{Kind: "ledger group", ID: parentID.String()}
	}
	steps := 0
	for cur := p; cur != noParent; cur = c.parents[cur] {
		if cur == i {
			return noParent, &shared.ConflictError{Reason: fmt.Sprintf("moving %q under %q would create a cycle", c.groups[i].Name, c.groups[p].Name)}
		}
		steps++
		if steps > len(c.groups) {
			return noParent, &shared.ConflictError{Reason: "group tree already contains a cycle"}
		}
	}
	return p, nil
}

func (c *Chart) setParent(i, p int) {
	c.parents[i] = p
	if p == noParent {
		c.groups[i].ParentID = nil
		return
	}
	pid := c.groups[p].ID
	c.groups[i].ParentID = &pid
}

func (c *Chart) validateLedger(l accounting.Ledger) error {
	verr := &shared.ValidationError{}
	if l.ID == uuid.Nil {
		verr.Add("ledger id is required")
	}
	if strings.TrimSpace(l.Name) == "" {
		verr.Add("ledger name is required")
	}
	if l.OpeningBalance.IsNegative() {
		verr.Add("opening balance must not be negative")
	}
	if !l.OpeningBalance.Equal(accounting.Round2(l.OpeningBalance)) {
		verr.Add("opening balance %s has more than 2 decimal places", l.OpeningBalance)
	}
	if !l.OpeningBalance.IsZero() && !l.OpeningSide.Valid() {
		verr.Add("opening balance side %q must be Dr or Cr", l.OpeningSide)
	}
	if err := verr.Err(); err != nil {
		return err
	}
	if _, ok := c.groupIdx[l.GroupID]; !ok {
		return &shared.NotFoundError{Kind: "ledger group", ID: l.GroupID.String()}
	}
	name := strings.TrimSpace(l.Name)
	for _, other := range c.ledgers {
		if other.ID != l.ID && strings.EqualFold(strings.TrimSpace(other.Name), name) {
			return &shared.ConflictError{Reason: fmt.Sprintf("ledger name %q is already used", name)}
		}
	}
	return nil
}

// AddLedger attaches a new ledger to an existing group.
func (c *Chart) AddLedger(l accounting.Ledger) error {
	if err := c.validateLedger(l); err != nil {
		return err
	}
	if _, dup := c.ledgerIdx[l.ID]; dup {
		return &shared.ConflictError{Reason: fmt.Sprintf("ledger %s already exists", l.ID)}
	}
	c.ledgerIdx[l.ID] = len(c.ledgers)
	c.ledgers = append(c.ledgers, l)
	return nil
}

// UpdateLedger replaces a non-system ledger.
func (c *Chart) UpdateLedger(l accounting.Ledger) error {
	i, ok := c.ledgerIdx[l.ID]
	if !ok {
		return &shared.NotFoundError{Kind: "ledger", ID: l.ID.String()}
	}
	if c.ledgers[i].IsSystem {
		return &shared.ConflictError{Reason: fmt.Sprintf("system ledger %q cannot be modified", c.ledgers[i].Name)}
	}
	if l.IsSystem {
		return &shared.ConflictError{Reason: "ledgers cannot be promoted to system ledgers"}
	}
	if err := c.validateLedger(l); err != nil {
		return err
	}
	c.ledgers[i] = l
	return nil
}

// UpsertLedger adds l when unknown, otherwise updates it.
func (c *Chart) UpsertLedger(l accounting.Ledger) error {
	if _, ok := c.ledgerIdx[l.ID]; ok {
		return c.UpdateLedger(l)
	}
	return c.AddLedger(l)
}

// Group looks up a group by id.
func (c *Chart) Group(id uuid.UUID) (accounting.LedgerGroup, bool) {
	i, ok := c.groupIdx[id]
	if !ok {
		return accounting.LedgerGroup{}, false
	}
	return cloneGroup(c.groups[i]), true
}

// GroupByName returns the first group carrying name.
func (c *Chart) GroupByName(name string) (accounting.LedgerGroup, bool) {
	for _, g := range c.groups {
		if strings.EqualFold(g.Name, name) {
			return cloneGroup(g), true
		}
	}
	return accounting.LedgerGroup{}, false
}

// Ledger looks up a ledger by id.
func (c *Chart) Ledger(id uuid.UUID) (accounting.Ledger, bool) {
	i, ok := c.ledgerIdx[id]
	if !ok {
		return accounting.Ledger{}, false
	}
	return c.ledgers[i], true
}

// Groups returns all groups in insertion order.
func (c *Chart) Groups() []accounting.LedgerGroup {
	out := make([]accounting.LedgerGroup, len(c.groups))
	for i, g := range c.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

// Ledgers returns all ledgers in insertion order.
func (c *Chart) Ledgers() []accounting.Ledger {
	return append([]accounting.Ledger(nil), c.ledgers...)
}

// NatureOf resolves a ledger's nature through its group.
func (c *Chart) NatureOf(ledgerID uuid.UUID) (accounting.Nature, error) {
	l, ok := c.Ledger(ledgerID)
	if !ok {
		return "", &shared.NotFoundError{Kind: "ledger", ID: ledgerID.String()}
	}
	return c.groups[c.groupIdx[l.GroupID]].Nature, nil
}

// Children returns the direct subgroups of id in insertion order.
func (c *Chart) Children(id uuid.UUID) []accounting.LedgerGroup {
	i, ok := c.groupIdx[id]
	if !ok {
		return nil
	}
	var out []accounting.LedgerGroup
	for j, p := range c.parents {
		if p == i {
			out = append(out, cloneGroup(c.groups[j]))
		}
	}
	return out
}

// LedgersOf returns the ledgers attached directly to a group.
func (c *Chart) LedgersOf(groupID uuid.UUID) []accounting.Ledger {
	var out []accounting.Ledger
	for _, l := range c.ledgers {
		if l.GroupID == groupID {
			out = append(out, l)
		}
	}
	return out
}

// Ancestors returns the chain from the group's parent up to its root.
func (c *Chart) Ancestors(id uuid.UUID) []accounting.LedgerGroup {
	i, ok := c.groupIdx[id]
	if !ok {
		return nil
	}
	var out []accounting.LedgerGroup
	for p := c.parents[i]; p != noParent && len(out) <= len(c.groups); p = c.parents[p] {
		out = append(out, cloneGroup(c.groups[p]))
	}
	return out
}

// Within reports whether group id equals ancestorID or sits beneath it.
func (c *Chart) Within(id, ancestorID uuid.UUID) bool {
	if id == ancestorID {
		return true
	}
	for _, g := range c.Ancestors(id) {
		if g.ID == ancestorID {
			return true
		}
	}
	return false
}

// Subtree returns the ids of a group and every group beneath it.
func (c *Chart) Subtree(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	_ = c.Walk(func(g accounting.LedgerGroup, _ int) error {
		if c.Within(g.ID, id) {
			out = append(out, g.ID)
		}
		return nil
	})
	return out
}

// children computes per-index child lists in one pass, keeping sibling insertion order.
func (c *Chart) children() (roots []int, kids [][]int) {
	kids = make([][]int, len(c.groups))
	for i, p := range c.parents {
		if p == noParent {
			roots = append(roots, i)
			continue
		}
		kids[p] = append(kids[p], i)
	}
	return roots, kids
}

// Walk visits groups depth-first in pre-order, siblings in insertion order.
// Returning an error from fn stops the walk.
func (c *Chart) Walk(fn func(g accounting.LedgerGroup, depth int) error) error {
	roots, kids := c.children()
	var visit func(i, depth int) error
	visit = func(i, depth int) error {
		if err := fn(cloneGroup(c.groups[i]), depth); err != nil {
			return err
		}
		for _, k := range kids[i] {
			if err := visit(k, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := visit(r, 0); err != nil {
			return err
		}
	}
	return nil
}

// Tree returns the nested representation of the chart.
func (c *Chart) Tree() []GroupNode {
	roots, kids := c.children()
	ledgers := make([][]accounting.Ledger, len(c.groups))
	for _, l := range c.ledgers {
		i := c.groupIdx[l.GroupID]
		ledgers[i] = append(ledgers[i], l)
	}
	var build func(i int) GroupNode
	build = func(i int) GroupNode {
		node := GroupNode{
			Group:    cloneGroup(c.groups[i]),
			Children: []GroupNode{},
			Ledgers:  append([]accounting.Ledger{}, ledgers[i]...),
		}
		for _, k := range kids[i] {
			node.Children = append(node.Children, build(k))
		}
		return node
	}
	out := make([]GroupNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// Search matches ledgers whose name or alias contains query, case-insensitively,
// optionally restricted to one nature. At most limit results are returned.
func (c *Chart) Search(query string, nature *accounting.Nature, limit int) []accounting.Ledger {
	q := strings.ToLower(strings.TrimSpace(query))
	limit = shared.ClampLimit(limit)
	out := []accounting.Ledger{}
	for _, l := range c.ledgers {
		if nature != nil && c.groups[c.groupIdx[l.GroupID]].Nature != *nature {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(l.Name), q) && !strings.Contains(strings.ToLower(l.Alias), q) {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out
}
