// Package dockerfile imports existing Dockerfiles into bootstrap
// definitions.
//
// Import is a one-way, best-effort migration: the recognizable subset of a
// Dockerfile (FROM, package installs, a pip requirements install, a source
// copy, and the runtime configuration instructions) is mapped onto recipe
// fields, and everything else surfaces as a structured warning rather than
// an error. The parsed result feeds BuildRecipe, which merges one or two
// Dockerfiles into a single definition with full and slim profiles.
package dockerfile
