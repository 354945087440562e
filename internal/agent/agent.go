package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"workflow-docs-rag/internal/config"
	"workflow-docs-rag/internal/helper"
	"workflow-docs-rag/internal/llmservice"
	"workflow-docs-rag/internal/models"
)

var (
	ErrMaxSteps       = errors.New("agent exceeded max steps")
	ErrTooManyRetries = errors.New("agent exceeded tool call retries")
)

// Agent answers a user message by letting the model call registered tools
// until it replies with plain text.
type Agent struct {
	llm          llms.Model
	registry     *Registry
	systemPrompt string
	maxSteps     int
	retries      int
}

func NewAgent(llm llms.Model, registry *Registry, systemPrompt string, cfg config.AgentConfig) *Agent {
	return &Agent{
		llm:          llm,
		registry:     registry,
		systemPrompt: systemPrompt,
		maxSteps:     cfg.MaxSteps,
		retries:      cfg.Retries,
	}
}

func (a *Agent) Run(ctx context.Context, query string) (models.PromptResponse, error) {
	turnID, err := helper.GenerateUUID()
	if err != nil {
		return models.PromptResponse{}, err
	}
	logger := log.With().Str("turn_id", turnID).Logger()
	out := models.PromptResponse{TurnID: turnID, Query: query}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}
	tools := a.registry.LLMTools()

	invalid := 0
	for out.Steps < a.maxSteps {
		out.Steps++
		resp, err := llmservice.GenerateContent(ctx, a.llm, tools, messages)
		if err != nil {
			return out, err
		}

		choice := resp.Choices[0]
		if len(choice.ToolCalls) == 0 {
			out.Content = choice.Content
			logger.Info().Int("steps", out.Steps).Msg("Agent turn complete")
			return out, nil
		}

		calls := make([]llms.ContentPart, 0, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			if tc.ID == "" {
				choice.ToolCalls[i].ID = fmt.Sprintf("call_%s_%d_%d", turnID[:8], out.Steps, i)
			}
			calls = append(calls, choice.ToolCalls[i])
		}
		messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: calls})

		for _, tc := range choice.ToolCalls {
			name, arguments := "", ""
			if tc.FunctionCall != nil {
				name, arguments = tc.FunctionCall.Name, tc.FunctionCall.Arguments
			}
			logger.Debug().Str("tool", name).Str("arguments", arguments).Msg("Calling tool")

			result, err := a.registry.Dispatch(ctx, name, arguments)
			if err != nil {
				invalid++
				logger.Warn().Err(err).Int("invalid_calls", invalid).Msg("Invalid tool call")
				if invalid > a.retries {
					return out, fmt.Errorf("%w: %v", ErrTooManyRetries, err)
				}
				result = fmt.Sprintf("Invalid tool call: %v. Fix the call and try again.", err)
			}

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       name,
					Content:    result,
				}},
			})
		}
	}

	return out, fmt.Errorf("%w (%d)", ErrMaxSteps, a.maxSteps)
}
