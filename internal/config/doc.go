// Package config loads the hatter daemon configuration. Values are layered:
// built-in defaults, then an optional YAML file, then HATTER_ prefixed
// environment variables where "__" separates nested keys.
package config
