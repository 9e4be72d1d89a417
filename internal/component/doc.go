// Package component defines the immutable graph model that instances execute.
//
// A Component is a named graph of cells, connectors, child instance references
// and variables, joined by signal, association, connection and operand edges.
// Components are validated on construction and never mutated afterwards, so a
// single Component can back any number of concurrently running instances.
//
// The component identity (Hash) is computed from node and edge content and is
// invariant to the order in which nodes and edges were declared.
package component
