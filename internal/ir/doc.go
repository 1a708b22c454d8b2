// Package ir provides the canonical intermediate representation for relcheck.
//
// This package contains the value model, the type model, and the expression
// and declaration forms that make up a schema. All other internal packages
// import ir; ir imports nothing internal. This ensures IR remains the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - integers are arbitrary-range exact values
//   - Values are immutable after construction; Bag is the only mutable
//     container, and only top-level state bags are ever mutated
//   - Handle-typed records compare by identity, plain records structurally
//   - All JSON tags use snake_case
package ir
