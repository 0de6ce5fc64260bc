// Package agent turns conversation turns into Hats Protocol role operations.
// Each action runs the same pipeline: render an extraction prompt from the
// recent conversation, ask the generation collaborator for a JSON object,
// validate it into typed parameters, switch the wallet to the requested
// chain and call the roles contract. Every run ends with exactly one
// callback.
package agent
