// Package cache stores pre-source image prefixes keyed by content.
//
// A prefix key accumulates over a plan's pre-source stages: the base
// reference, the OS package list, and the dependency manifest's content
// digest, each chained onto its predecessor's key. Rebuilding with an
// unchanged context and base therefore hits for every stage preceding the
// source copy, while any change to a pre-source input produces a new key.
package cache
