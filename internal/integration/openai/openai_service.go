package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent can choose from.
const (
	CommandGetStatus    = "GetStatus"
	CommandRunForecast  = "RunForecast"
	CommandGeneralQuery = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName        string  `json:"command_name" jsonschema_description:"The command to execute: GetStatus, RunForecast or GeneralQuery"`
	IntensityMMPerHour float64 `json:"intensity_mm_per_hour" jsonschema_description:"Rainfall intensity in mm/h for RunForecast, 0 otherwise"`
	DurationHours      float64 `json:"duration_hours" jsonschema_description:"Rainfall duration in hours for RunForecast, 0 otherwise"`
	UserMessage        string  `json:"user_message" jsonschema_description:"A message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string, opts ...option.RequestOption) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
	}, nil
}

const systemPrompt = `You are the assistant of a river flood monitoring station. Operators and residents ask you about the river and about what a rainfall forecast would do to the reservoir below the station.

Requirements:
- You understand English, Serbian and Russian and reply in the language the user used.
- Keep replies short and factual. Never invent measurements, the station supplies them.

Behavior:
1. If the user wants to know the current river level, flow or flood status:
   - command_name = "GetStatus"
   - intensity_mm_per_hour = 0, duration_hours = 0
   - user_message: a one-line confirmation in the user's language.
2. If the user describes expected rain and wants to know the risk, capacity or time to fill:
   - command_name = "RunForecast"
   - intensity_mm_per_hour: the rainfall intensity in mm per hour. Convert totals to an hourly rate when the user gives a total and a duration.
   - duration_hours: how long the rain lasts in hours.
   - user_message: a one-line confirmation in the user's language.
3. Anything else (greetings, small talk, questions the station cannot answer):
   - command_name = "GeneralQuery"
   - intensity_mm_per_hour = 0, duration_hours = 0
   - user_message: a brief reply, pointing to /help when useful.

Output **strictly** in JSON.`

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, forecast parameters and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})

	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var agentResp AgentResponse
	err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &agentResp)
	if err != nil {
		log.Printf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, chat.Choices[0].Message.Content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	return &agentResp, nil
}
