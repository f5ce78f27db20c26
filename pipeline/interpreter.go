// Package pipeline interprets a user-declared operation list against
// a starting value, producing the node's local partial result
// (SPEC_FULL §4.3).
/*
 * Copyright (c) 2024, BDAE Storage Project. All rights reserved.
 */
package pipeline

import (
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/steffenkarlsson/bdae-storage/operation"
)

// parallelWorkers bounds the Parallel composite's fan-out, matching
// the teacher's/original's fixed ThreadPool(4).
const parallelWorkers = 4

// Run interprets ops left-to-right against the initial value,
// returning the final threaded value. Operations are consumed one at
// a time: a Function applies and threads forward, a Sequential
// recurses on its nested list against the current value then
// continues with that result, a Parallel fans its nested list out
// concurrently over the same input and threads forward the
// declaration-ordered list of their outputs.
func Run(ops []operation.Operation, value interface{}) (interface{}, error) {
	for _, op := range ops {
		next, err := step(op, value)
		if err != nil {
			return nil, err
		}
		value = next
	}
	return value, nil
}

func step(op operation.Operation, value interface{}) (interface{}, error) {
	switch op.Kind {
	case operation.KindFunction:
		return op.Fn(value)
	case operation.KindSequential:
		return Run(op.Nested, value)
	case operation.KindParallel:
		return runParallel(op.Nested, value)
	default:
		return value, nil
	}
}

// runParallel feeds value to every nested operation concurrently,
// bounded to parallelWorkers in flight, and joins before returning
// the results in declaration order.
func runParallel(ops []operation.Operation, value interface{}) (interface{}, error) {
	results := make([]interface{}, len(ops))
	g := new(errgroup.Group)
	g.SetLimit(parallelWorkers)
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			res, err := step(op, value)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Terminal returns the pipeline's last operation: the reduction step
// the tree barrier reuses to combine partials across nodes
// (SPEC_FULL §4.3/§4.5). Panics if ops is empty — a pipeline with no
// terminal operation is a malformed user program, not a runtime
// condition this engine recovers from.
func Terminal(ops []operation.Operation) operation.Operation {
	return ops[len(ops)-1]
}

// Reduce applies the terminal operation to a (peerPartial,
// selfPartial) pair, exactly as the barrier's round-to-round combine
// step requires (SPEC_FULL §4.5). The terminal operation must be
// associative over the node-partial domain.
func Reduce(terminal operation.Operation, peerPartial, selfPartial interface{}) (interface{}, error) {
	return step(terminal, [2]interface{}{peerPartial, selfPartial})
}

// InitialValue builds the pipeline's starting value per SPEC_FULL
// §4.3: [blocks] prepended to the query parts, where query is split
// on ctx.Delimiter when ctx.MultiArgs holds, else treated as a single
// part.
func InitialValue(blocks interface{}, ctx *operation.Context, query string) []interface{} {
	var parts []string
	if ctx.MultiArgs {
		parts = strings.Split(query, ctx.Delimiter)
	} else {
		parts = []string{query}
	}
	args := make([]interface{}, 0, len(parts)+1)
	args = append(args, blocks)
	for _, p := range parts {
		args = append(args, p)
	}
	return args
}
