// Package geometry implements the set representations the reachability
// engine computes with:
//
//   - [Interval]: axis-aligned box, one [lo,hi] pair per dimension
//   - [Span]: scalar interval with full arithmetic
//   - [Zonotope]: center plus linear generators
//   - [PolyZonotope]: polynomial dependence on parameters plus a zonotopic rest
//   - [TaylorModel]: polynomial with a rigorous remainder interval
//
// All types are immutable value objects: every operation returns a fresh set
// and conservative operations (order reduction, enclosure, conversion) only
// grow the represented region, never shrink it.
package geometry
