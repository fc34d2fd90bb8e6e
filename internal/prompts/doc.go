// Package prompts loads the prompt pack used by the script and images stages.
// The default pack is embedded; script.prompts_path may name a YAML file whose
// non-empty fields replace the defaults.
package prompts
