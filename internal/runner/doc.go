// Package runner defines the interface every job kind implements, the
// registry the engine resolves kinds through, and the runners that forward
// jobs to the cloud config, screenshot and offsite services.
package runner
