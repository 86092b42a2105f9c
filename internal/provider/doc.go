// Package provider defines the narrow interfaces the orchestrator uses to talk
// to external speech and language collaborators.
package provider
