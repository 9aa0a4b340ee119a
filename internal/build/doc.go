// Package build runs the specblocks pipeline.
//
// A build executes the stages acquire, model, render, index and write in
// strict sequence. Each stage is timed and classified into a Report. The
// write stage fills a sibling staging directory and promotes it over the
// output directory, so a failed or canceled build never leaves a partial
// discovery layer behind.
package build
