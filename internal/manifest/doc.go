// Package manifest defines the bootstrap definition: a TOML file describing
// one deployable service, its base runtime image, and the build profiles
// that package it.
//
// A definition replaces a pair of near-duplicate container build recipes
// with a single parameterized document. The full profile carries the OS
// dependency stage; the slim profile uses a smaller base variant and skips
// it. Both compile into an ordered stage [Plan] whose layer order places
// rarely-changing stages before the source copy.
//
// Example usage:
//
//	recipe, err := manifest.Discover(".")
//	if err != nil {
//	    return err
//	}
//
//	plan, err := recipe.Plan(manifest.ProfileFull)
//	if err != nil {
//	    return err
//	}
package manifest
