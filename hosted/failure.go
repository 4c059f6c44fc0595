package hosted

import (
	"context"
	"log/slog"
	"strings"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/prompts"
)

// AnalyzeFailure asks the model to explain err to the user. When that fails
// too, a static explanation chosen from the error text is returned.
func (c *Client) AnalyzeFailure(ctx context.Context, prompt string, cause error) string {
	if c == nil {
		return FallbackExplanation(cause)
	}

	request, err := prompts.Render(prompts.AnalyzeRequest, map[string]any{
		"Prompt": prompt,
		"Error":  errorText(cause),
	})
	if err == nil {
		var text string
		text, err = c.generate(ctx, prompts.MustRender(prompts.AnalyzeFailure, nil), request, nil)
		if err == nil && text == "" {
			err = errors.New("meta-cognition analysis returned an empty response")
		}
		if err == nil {
			return text
		}
	}

	c.logger.Warn("failure analysis failed", slog.Any("error", err), slog.Any("cause", cause))
	return FallbackExplanation(cause)
}

// FallbackExplanation is the static explanation for cause.
func FallbackExplanation(cause error) string {
	reason := "Please try again, perhaps with a different phrasing."
	msg := strings.ToLower(errorText(cause))

	switch {
	case errors.Is(cause, ErrMissingAPIKey) || strings.Contains(msg, "api_key_missing") || strings.Contains(msg, "api key not valid"):
		reason = "The API key is missing or invalid. The application owner needs to configure it correctly."
	case strings.Contains(msg, "safety"):
		reason = "The request was blocked by the API's safety filters. Please try rephrasing your message to be less sensitive."
	case strings.Contains(msg, "timed out") || errors.Is(cause, context.DeadlineExceeded):
		reason = "The request to the API timed out. This could be a temporary network issue or the request is too complex. Please try again."
	case strings.Contains(msg, "failed to fetch") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		reason = "A network error occurred, and I couldn't reach the AI service. Please check your internet connection and try again."
	case strings.Contains(msg, "400 bad request") || strings.Contains(msg, "error 400"):
		reason = "The request was malformed, which is likely an internal application error. Try a different phrasing or restart the application."
	}
	return "I'm sorry, I encountered an issue and couldn't process your request. " + reason
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
