package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bft-labs/obsrelay/internal/domain"
)

// InvokeFunc executes an operation.
type InvokeFunc func(ctx context.Context, args Args) (any, error)

// Operation is one catalog entry. It is immutable once registered.
type Operation struct {
	Name           string
	RequiredParams []string
	Invoke         InvokeFunc
}

// Info returns the published contract of the operation.
func (o Operation) Info() domain.OperationInfo {
	return domain.OperationInfo{
		Name:           o.Name,
		RequiredParams: append([]string(nil), o.RequiredParams...),
	}
}

// Catalog maps operation names to operations. It is filled at startup,
// sealed, and read-only afterwards.
type Catalog struct {
	mu     sync.RWMutex
	order  []string
	ops    map[string]Operation
	sealed bool
}

// NewCatalog creates an empty, unsealed catalog.
func NewCatalog() *Catalog {
	return &Catalog{ops: make(map[string]Operation)}
}

// Register adds op. Fails with ErrDuplicateOperation for a repeated name and
// ErrCatalogSealed after Seal.
func (c *Catalog) Register(op Operation) error {
	name := strings.TrimSpace(op.Name)
	if name == "" || op.Invoke == nil {
		return fmt.Errorf("%w: name and invoke are required", domain.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return fmt.Errorf("%w: %s", domain.ErrCatalogSealed, name)
	}
	if _, ok := c.ops[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateOperation, name)
	}
	op.Name = name
	op.RequiredParams = append([]string(nil), op.RequiredParams...)
	c.ops[name] = op
	c.order = append(c.order, name)
	return nil
}

// MustRegister is Register for startup code, where a failure is a programming error.
func (c *Catalog) MustRegister(ops ...Operation) {
	for _, op := range ops {
		if err := c.Register(op); err != nil {
			panic(err)
		}
	}
}

// Seal forbids further registration.
func (c *Catalog) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

// Resolve returns the operation registered under name.
func (c *Catalog) Resolve(name string) (Operation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.ops[name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", domain.ErrOperationNotFound, name)
	}
	return op, nil
}

// Describe lists every operation in registration order.
func (c *Catalog) Describe() []domain.OperationInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.OperationInfo, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.ops[name].Info())
	}
	return out
}

// Names lists operation names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of operations.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
