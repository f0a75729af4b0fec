// Package tree implements the reasoning tree: branch creation, score
// aggregation, pruning, top-k selection, best-path extraction, and
// durable save/restore.
//
// Pruning here is not probabilistic search. It is a deterministic
// greedy cut applied independently per sibling group, which makes
// results fully reproducible given fixed evaluator outputs.
package tree

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrParentNotFound reports an attempt to add a child under a node
// that is not in the tree. This is a caller bug, not a degraded mode.
var ErrParentNotFound = fmt.Errorf("tree: parent node not found")

// Config fixes the tree shape at construction.
type Config struct {
	BranchingFactor int // branches generated per expansion
	Survivors       int // branches kept per sibling group after pruning
	MaxDepth        int // root is depth 0
}

// DefaultConfig matches the production shape: 4 branches, keep 2,
// three levels deep.
func DefaultConfig() Config {
	return Config{BranchingFactor: 4, Survivors: 2, MaxDepth: 3}
}

// Persister stores whole-tree snapshots. Every structural mutation is
// persisted immediately so an interrupted run resumes cleanly.
type Persister interface {
	ReplaceTreeSnapshot(rootID string, data []byte) error
	LoadTreeSnapshot() ([]byte, error)
	DeleteTreeSnapshot() error
}

// Tree is the aggregate root owning all nodes.
type Tree struct {
	cfg     Config
	nodes   map[string]*Node
	order   []string // node ids in insertion order, for stable iteration
	rootID  string
	store   Persister // nil disables persistence
	logger  *zap.Logger
}

// New creates a tree, restoring any snapshot the persister holds.
// A corrupted snapshot is discarded and the tree starts fresh.
func New(cfg Config, store Persister, logger *zap.Logger) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tree{
		cfg:    cfg,
		nodes:  make(map[string]*Node),
		store:  store,
		logger: logger,
	}
	t.load()
	return t
}

// Root returns the root node, or nil if the tree is empty.
func (t *Tree) Root() *Node {
	if t.rootID == "" {
		return nil
	}
	return t.nodes[t.rootID]
}

// Node returns a node by id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// Children returns a node's children in creation order.
func (t *Tree) Children(n *Node) []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		if c, ok := t.nodes[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Config returns the fixed tree configuration.
func (t *Tree) Config() Config {
	return t.cfg
}

func newID() string {
	return uuid.NewString()[:8]
}

// CreateRoot creates the depth-0 node and persists. Any previously
// loaded tree is discarded: a new root means a new analysis.
func (t *Tree) CreateRoot(description string) (*Node, error) {
	t.nodes = make(map[string]*Node)
	t.order = t.order[:0]
	node := &Node{
		ID:          newID(),
		Depth:       0,
		Label:       RootLabel,
		Description: description,
		Children:    []string{},
		CreatedAt:   time.Now(),
	}
	t.nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	t.rootID = node.ID
	if err := t.Save(); err != nil {
		return nil, err
	}
	t.logger.Debug("root created", zap.String("id", node.ID))
	return node, nil
}

// AddChild creates a child under parent and persists. The child label
// is the parent's label dot-joined with the local label, except under
// the root, whose sentinel label is never concatenated.
func (t *Tree) AddChild(parent *Node, label, description string) (*Node, error) {
	if parent == nil {
		return nil, ErrParentNotFound
	}
	if _, ok := t.nodes[parent.ID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parent.ID)
	}

	fullLabel := label
	if !parent.IsRoot() {
		fullLabel = parent.Label + "." + label
	}

	node := &Node{
		ID:          newID(),
		Depth:       parent.Depth + 1,
		ParentID:    parent.ID,
		Label:       fullLabel,
		Description: description,
		Children:    []string{},
		CreatedAt:   time.Now(),
	}
	parent.Children = append(parent.Children, node.ID)
	t.nodes[node.ID] = node
	t.order = append(t.order, node.ID)
	if err := t.Save(); err != nil {
		return nil, err
	}
	return node, nil
}

// MarkEvaluated records the three sub-scores, clamped to [0,1] and
// rounded to three decimals, recomputes the composite mean, and
// persists. Calling it again overwrites: last write wins.
func (t *Tree) MarkEvaluated(node *Node, feasibility, risk, financial float64) error {
	node.Feasibility = round3(clamp01(feasibility))
	node.Risk = round3(clamp01(risk))
	node.Financial = round3(clamp01(financial))
	node.Composite = round3((node.Feasibility + node.Risk + node.Financial) / 3)
	node.Evaluated = true
	now := time.Now()
	node.EvaluatedAt = &now
	return t.Save()
}

// SelectTopK filters to evaluated, non-pruned nodes, sorts descending
// by composite score with ties broken by original order (stable), and
// returns the first k.
func (t *Tree) SelectTopK(nodes []*Node, k int) []*Node {
	eligible := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Evaluated && !n.Pruned {
			eligible = append(eligible, n)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Composite > eligible[j].Composite
	})
	if len(eligible) > k {
		eligible = eligible[:k]
	}
	return eligible
}

// PruneWeakBranches marks every sibling outside the top survivors as
// pruned and persists. It operates on one sibling group only; pruning
// never reaches into other groups.
func (t *Tree) PruneWeakBranches(siblings []*Node) error {
	kept := make(map[string]bool)
	for _, n := range t.SelectTopK(siblings, t.cfg.Survivors) {
		kept[n.ID] = true
	}
	for _, n := range siblings {
		if !kept[n.ID] {
			n.Pruned = true
		}
	}
	return t.Save()
}

// BestPath traces from the root, always descending into the
// highest-composite child that is evaluated and not pruned, and stops
// at the first node with no such child.
func (t *Tree) BestPath() []*Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	path := []*Node{}
	current := root
	for current != nil {
		path = append(path, current)
		var best *Node
		for _, c := range t.Children(current) {
			if !c.Evaluated || c.Pruned {
				continue
			}
			if best == nil || c.Composite > best.Composite {
				best = c
			}
		}
		current = best
	}
	return path
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// snapshot is the durable wire form of the whole tree.
type snapshot struct {
	RootID  string    `json:"root_id"`
	SavedAt time.Time `json:"saved_at"`
	Nodes   []*Node   `json:"nodes"`
}

// Save writes the whole tree to the persister.
func (t *Tree) Save() error {
	if t.store == nil {
		return nil
	}
	snap := snapshot{
		RootID:  t.rootID,
		SavedAt: time.Now(),
		Nodes:   t.Nodes(),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal tree snapshot: %w", err)
	}
	if err := t.store.ReplaceTreeSnapshot(t.rootID, data); err != nil {
		return fmt.Errorf("failed to persist tree: %w", err)
	}
	return nil
}

// load restores the tree from the persister. Any load or parse
// failure starts fresh rather than failing the process.
func (t *Tree) load() {
	if t.store == nil {
		return
	}
	data, err := t.store.LoadTreeSnapshot()
	if err != nil {
		t.logger.Warn("failed to load tree snapshot, starting fresh", zap.Error(err))
		return
	}
	if data == nil {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.logger.Warn("corrupted tree snapshot, starting fresh", zap.Error(err))
		return
	}
	t.rootID = snap.RootID
	for _, n := range snap.Nodes {
		t.nodes[n.ID] = n
		t.order = append(t.order, n.ID)
	}
	t.logger.Debug("tree restored", zap.Int("nodes", len(t.nodes)))
}

// Reset clears the in-memory tree and removes the durable snapshot.
func (t *Tree) Reset() error {
	t.nodes = make(map[string]*Node)
	t.order = nil
	t.rootID = ""
	if t.store == nil {
		return nil
	}
	if err := t.store.DeleteTreeSnapshot(); err != nil {
		return fmt.Errorf("failed to delete tree snapshot: %w", err)
	}
	return nil
}
