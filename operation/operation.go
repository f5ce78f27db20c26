// Package operation defines the user-declared pipeline model: pure
// functions composed as Sequential or Parallel, and the operation
// context (ghost settings, query-splitting rules) a user program
// attaches to each named pipeline (SPEC_FULL §3/§4.3).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package operation

// Func is a pure function step: given the threaded value, it returns
// the next one (or an error if the step fails). It never mutates its
// input.
type Func func(value interface{}) (interface{}, error)

// Kind discriminates an Operation's concrete shape, mirroring the
// teacher's small Action-string-tagged structs (ec.go's Request)
// generalized into a proper three-case sum type.
type Kind int

const (
	KindFunction Kind = iota
	KindSequential
	KindParallel
)

// Operation is one pipeline step: a pure function, or a composite
// (Sequential/Parallel) of nested operations.
type Operation struct {
	Kind   Kind
	Fn     Func        // valid when Kind == KindFunction
	Nested []Operation // valid when Kind == KindSequential or KindParallel
	Name   string      // for logging/diagnostics only
}

// F wraps a pure function as a leaf Operation.
func F(name string, fn Func) Operation {
	return Operation{Kind: KindFunction, Fn: fn, Name: name}
}

// Sequential threads its input through each nested operation in
// order: step i's output is step i+1's input.
func Sequential(name string, ops ...Operation) Operation {
	return Operation{Kind: KindSequential, Nested: ops, Name: name}
}

// Parallel feeds the same input to every nested operation
// concurrently; outputs are collected into a list in declaration
// order and passed to the next pipeline step.
func Parallel(name string, ops ...Operation) Operation {
	return Operation{Kind: KindParallel, Nested: ops, Name: name}
}

// GhostType identifies how a ghost slice is extracted from a block.
// ENTRY is the only kind the engine currently implements: slice whole
// records off a block (SPEC_FULL §3).
type GhostType int

const (
	GhostTypeEntry GhostType = iota
)

// Context is the per-named-function pipeline declaration a user
// program attaches: the ordered pipeline itself plus the ghost and
// query-splitting settings the engine needs before it can run the
// pipeline.
type Context struct {
	FunName    string
	Pipeline   []Operation
	GhostLeft  bool
	GhostRight bool
	GhostType  GhostType
	GhostCount int
	MultiArgs  bool
	Delimiter  string
}

// NeedsGhost reports whether this context requires ghost exchange
// before execution can start.
func (c *Context) NeedsGhost() bool { return c.GhostLeft || c.GhostRight }

// NeedsBothGhosts reports whether both the left and right edge slices
// must arrive before execution can start (SPEC_FULL §4.4 gating).
func (c *Context) NeedsBothGhosts() bool { return c.GhostLeft && c.GhostRight }

// Program is the contract a user-supplied analysis program must
// satisfy once deserialized: a set of named operation contexts. How
// the blob+class-name pair becomes a Program is a sandboxing concern
// left to the trusted deserialization hook (SPEC_FULL §9); the engine
// only ever consumes the result.
type Program interface {
	Operations() []*Context
}

// Lookup finds the named operation context within a program, or
// reports false (the caller maps that to cmn.ErrNotFound).
func Lookup(p Program, funName string) (*Context, bool) {
	for _, ctx := range p.Operations() {
		if ctx.FunName == funName {
			return ctx, true
		}
	}
	return nil, false
}
