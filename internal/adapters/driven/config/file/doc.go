// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage (~/.ribo/config.toml)
//   - EnvOverlay: environment and .env overrides on top of any ConfigStore
//   - PromptStore: user-editable prompt templates (~/.ribo/prompts)
package file
