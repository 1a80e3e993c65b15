package service

import (
	"errors"
	"fmt"
	"strings"

	"medsim-server/internal/model"
)

const (
	// maxStatusLen bounds user-facing failure messages.
	maxStatusLen = 200
	// maxChatSummaryLen bounds assistant entries in the chat log.
	maxChatSummaryLen = 300
)

// StatusMessage turns a pipeline error into a short user-facing status
// in the requested language. Raw provider payloads never reach the user.
func StatusMessage(err error, language string) string {
	ru := strings.HasPrefix(strings.ToLower(language), "ru")

	var genErr *model.GenerationError
	if errors.As(err, &genErr) {
		switch genErr.Kind {
		case model.FailureRateLimited:
			if ru {
				return "Лимит запросов исчерпан. Попробуйте снова через минуту."
			}
			return "The request quota is exhausted. Please try again in a minute."
		case model.FailureMissingCredential:
			if ru {
				return "Ключ доступа к сервису генерации не настроен."
			}
			return "The generation service credential is not configured."
		case model.FailureTransient:
			if ru {
				return "Сервис генерации временно недоступен. Попробуйте ещё раз."
			}
			return "The generation service is temporarily unavailable. Please retry."
		}
	}

	msg := err.Error()
	if genErr != nil && genErr.Message != "" {
		msg = genErr.Message
	}
	if ru {
		return "Не удалось выполнить генерацию: " + truncate(msg, maxStatusLen)
	}
	return "Generation failed: " + truncate(msg, maxStatusLen)
}

// quizSummary describes a published quiz set for the chat log.
func quizSummary(q *model.QuizSet) string {
	return truncate(fmt.Sprintf("Prepared %d essay, %d short-answer and %d multiple-choice questions.",
		len(q.Essay), len(q.ShortAnswer), len(q.MultipleChoice)), maxChatSummaryLen)
}

// gallerySummary describes a published gallery for the chat log.
func gallerySummary(g *model.GalleryResult, topic string) string {
	if g.Synthesized {
		return truncate(fmt.Sprintf("Curated %d synthesized gallery views for %s.", len(g.Prompts), topic), maxChatSummaryLen)
	}
	return truncate(fmt.Sprintf("Curated %d gallery views for %s with %d source citations.",
		len(g.Prompts), topic, len(g.Citations)), maxChatSummaryLen)
}

// truncate cuts s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
