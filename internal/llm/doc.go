// Package llm defines the generation collaborator used to turn a rendered
// prompt into a JSON object that follows a small field schema. Provider
// adapters live in subpackages.
package llm
