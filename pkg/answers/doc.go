// Package answers models the answers collected by a multi-step form as a
// closed tagged variant over {Mapping, List, Scalar, Null}. Mappings keep
// insertion order so the accumulated object can be flattened deterministically
// and round-tripped through JSON without reordering keys. Parsing walks the
// document with gjson, which iterates object members in source order.
package answers
