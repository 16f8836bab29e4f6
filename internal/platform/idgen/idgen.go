// Package idgen generates human-facing document numbers (voucher, payment and
// credit note numbers). Numbers are snowflake based: unique per node and
// increasing with time.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Document number prefixes.
const (
	PrefixVoucher    = "JV"
	PrefixPayment    = "PAY"
	PrefixCreditNote = "CN"
)

type Generator struct {
	node *snowflake.Node
}

// New creates a generator for the given node (0..1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next returns a number like "JV-2ix4ga0svbgxs".
func (g *Generator) Next(prefix string) string {
	return prefix + "-" + g.node.Generate().Base36()
}
