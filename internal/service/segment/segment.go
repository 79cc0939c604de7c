package segment

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator issues analysis IDs.
type Generator struct {
	issued atomic.Uint64
	newID  func() string
}

func New() *Generator {
	return &Generator{newID: uuid.NewString}
}

// Next returns a fresh random (v4) analysis ID.
func (g *Generator) Next() string {
	g.issued.Add(1)
	return g.newID()
}

// Issued returns how many IDs were handed out.
func (g *Generator) Issued() uint64 {
	return g.issued.Load()
}
