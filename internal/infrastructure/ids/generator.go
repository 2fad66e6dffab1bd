package ids

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Generator hands out uuid entity ids and snowflake ledger ids. Snowflake ids
// are time ordered and strictly increasing on one node, which gives ledger rows
// written in the same millisecond a stable newest-first order.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator for node, which must be unique per running instance (0-1023)
func NewGenerator(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", node, err)
	}
	return &Generator{node: n}, nil
}

func (g *Generator) NewID() string {
	return uuid.New().String()
}

func (g *Generator) NewMovementID() (string, int64) {
	id := g.node.Generate()
	return id.String(), id.Int64()
}

// NewReferenceNumber returns a short operator-friendly number such as TRF-1A2B3C4D5E
func (g *Generator) NewReferenceNumber() string {
	return "TRF-" + strings.ToUpper(g.node.Generate().Base36())
}
