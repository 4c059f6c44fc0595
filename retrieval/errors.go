package retrieval

import (
	"fmt"

	"github.com/habiliai/nativeagent/localllm"
)

// Describe turns a local generation failure into the message shown to the user.
func Describe(err error, url, model string) string {
	switch {
	case localllm.IsConnectionError(err):
		return fmt.Sprintf("Could not connect to the Ollama server at %s. Please ensure it is running and accessible.", url)
	case localllm.IsModelNotFound(err):
		return fmt.Sprintf("The selected model \"%s\" was not found on the Ollama server.", model)
	default:
		return "Ollama Error: " + err.Error()
	}
}
