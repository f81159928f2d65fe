// Package ai builds prompts for answers, tags and summaries and sends them
// to a Generator behind a circuit breaker.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/metrics"
)

// MaxTags caps the number of suggested tags.
const MaxTags = 15

var errEmptyResponse = errors.New("empty response from AI service")

type ContentType string

const (
	ContentQuestion ContentType = "question"
	ContentAnswer   ContentType = "answer"
)

type Service struct {
	gen     Generator
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewService wraps gen. A nil gen yields a service whose every call
// reports the AI service as unavailable.
func NewService(gen Generator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller hanging up says nothing about the upstream's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return &Service{gen: gen, breaker: breaker, log: log}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Answer generates an answer to a question.
func (s *Service) Answer(ctx context.Context, title, description string, tags []string) (string, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return "", apperrors.InvalidArgument("Invalid question: must be a non-empty string")
	}

	var b strings.Builder
	b.WriteString("You are a helpful AI assistant. Please provide a comprehensive and accurate answer to the following question. ")
	b.WriteString("Make sure your response is well-structured, informative, and helpful.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n%s\n", title, description)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(tags, ", "))
	}
	b.WriteString("\nPlease provide a detailed answer:")

	return s.call(ctx, "answer", b.String())
}

// Tags suggests up to MaxTags tags, most relevant first.
func (s *Service) Tags(ctx context.Context, title, description string) ([]string, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return nil, apperrors.InvalidArgument("Title and description are required")
	}

	prompt := fmt.Sprintf("Based on the following question, generate exactly %d relevant tags. "+
		"The first 5 tags should be the most relevant and important for this question. "+
		"Return only the tags separated by commas, no additional text or formatting.\n\n"+
		"Question: %s\n%s\n\nTags:", MaxTags, title, description)

	text, err := s.call(ctx, "tags", prompt)
	if err != nil {
		return nil, err
	}

	tags := ParseTags(text)
	if len(tags) == 0 {
		return nil, apperrors.External("Failed to generate tags", errors.New("no valid tags generated"))
	}
	return tags, nil
}

// Summarize condenses a question or answer.
func (s *Service) Summarize(ctx context.Context, content string, contentType ContentType) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", apperrors.InvalidArgument("Content is required")
	}
	if contentType == "" {
		contentType = ContentQuestion
	}
	if contentType != ContentQuestion && contentType != ContentAnswer {
		return "", apperrors.InvalidArgument(`Invalid content type: must be "question" or "answer"`)
	}

	label := strings.ToUpper(string(contentType[:1])) + string(contentType[1:])
	prompt := fmt.Sprintf("Please provide a clear and concise summary of the following %s. "+
		"The summary should capture the main points and key information while being easy to understand.\n\n"+
		"%s: %s\n\nSummary:", contentType, label, content)

	return s.call(ctx, "summarize", prompt)
}

func (s *Service) call(ctx context.Context, operation, prompt string) (string, error) {
	if s.gen == nil {
		metrics.AIRequestsTotal.WithLabelValues(operation, "disabled").Inc()
		return "", apperrors.Unavailable("AI service is not configured", nil)
	}

	out, err := s.breaker.Execute(func() (any, error) {
		text, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, errEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.AIRequestsTotal.WithLabelValues(operation, "rejected").Inc()
			return "", apperrors.Unavailable("AI service is temporarily unavailable", err)
		}
		metrics.AIRequestsTotal.WithLabelValues(operation, "error").Inc()
		s.log.WarnContext(ctx, "AI request failed", "operation", operation, "error", err)
		return "", apperrors.External(failureMessage(operation), err)
	}

	metrics.AIRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return out.(string), nil
}

func failureMessage(operation string) string {
	switch operation {
	case "tags":
		return "Failed to generate tags"
	case "summarize":
		return "Failed to summarize content"
	default:
		return "Failed to generate AI answer"
	}
}

// ParseTags splits comma-separated model output into at most MaxTags
// trimmed, non-empty tags.
func ParseTags(text string) []string {
	tags := make([]string, 0, MaxTags)
	for _, raw := range strings.Split(strings.TrimSpace(text), ",") {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}
