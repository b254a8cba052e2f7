package usecases

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/integration/openai"
)

// FormatStatus formats the station state for display
func (uc *StationUseCase) FormatStatus(s Snapshot) string {
	if !s.HasReading {
		return "No sensor readings received yet."
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("🌊 Status: %s\n", s.Status.Label()))
	result.WriteString(fmt.Sprintf("💧 River Height: %.1f cm\n", s.State.Height))
	result.WriteString(fmt.Sprintf("🚰 Flow Rate: %.2f L/min\n", s.State.FlowRate))
	result.WriteString(fmt.Sprintf("🕒 Last update: %s", s.LastReading.Format("2006-01-02 15:04:05 MST")))

	if !s.LastAlert.IsZero() {
		result.WriteString(fmt.Sprintf("\n🚨 Last alert: %s", s.LastAlert.Format("2006-01-02 15:04:05 MST")))
	}

	if s.Assessment != nil {
		result.WriteString("\n\n")
		result.WriteString(uc.FormatAssessment(*s.Assessment))
	}
	return result.String()
}

// FormatAssessment formats a flood risk analysis for display
func (uc *StationUseCase) FormatAssessment(a engine.Assessment) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🌧️ Rainfall: %.1f mm/h for %.1f h\n", a.Forecast.IntensityMMPerHour, a.Forecast.DurationHours))
	result.WriteString(fmt.Sprintf("⚠️ Risk Level: %s\n", a.Risk.Label()))

	p := a.Projection
	if p.RemainingCapacity < 0 {
		result.WriteString(fmt.Sprintf("🏞️ Excess Volume: %.2f m³\n", math.Abs(p.RemainingCapacity)))
	} else {
		result.WriteString(fmt.Sprintf("🏞️ Remaining Capacity: %.2f m³\n", p.RemainingCapacity))
	}

	result.WriteString(fmt.Sprintf("⏳ Time to Fill: %s", p.TimeToFill.String()))
	if !p.TimeToFill.Overflowed() {
		switch a.Urgency {
		case engine.UrgencyUrgent:
			result.WriteString(" (URGENT!)")
		case engine.UrgencyWarning:
			result.WriteString(" (WARNING)")
		}
	}
	return result.String()
}

// FormatHelp lists the bot commands
func (uc *StationUseCase) FormatHelp() string {
	return "Available commands:\n" +
		"/start - Start the bot\n" +
		"/status - Show the current river status\n" +
		"/forecast [mm/h] [hours] - Assess a rainfall forecast, e.g. /forecast 12.5 3\n" +
		"/subscribe - Receive flood alerts in this chat\n" +
		"/unsubscribe - Stop receiving flood alerts\n" +
		"/help - Show this help message"
}

// HandleNaturalLanguageQuery interprets a user's free-text query using the AI service
// and returns an appropriate response string.
func (uc *StationUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.openAI == nil {
		return "I don't understand. Use /help to see available commands.", nil
	}

	log.Printf("Interpreting natural language query: %s", query)
	agentResp, err := uc.openAI.InterpretUserQuery(ctx, query)
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	log.Printf("Agent response: Command='%s', Intensity=%.1f, Duration=%.1f, Message='%s'",
		agentResp.CommandName, agentResp.IntensityMMPerHour, agentResp.DurationHours, agentResp.UserMessage)

	switch agentResp.CommandName {
	case openai.CommandGetStatus:
		s, err := uc.Snapshot(ctx)
		if err != nil {
			log.Printf("Error loading station status: %v", err)
			return "Sorry, I couldn't load the river status right now.", nil
		}
		return joinMessage(agentResp.UserMessage, uc.FormatStatus(s)), nil

	case openai.CommandRunForecast:
		a, err := uc.RunForecast(ctx, entities.ForecastInput{
			IntensityMMPerHour: agentResp.IntensityMMPerHour,
			DurationHours:      agentResp.DurationHours,
		})
		if err != nil {
			log.Printf("Error running forecast from query: %v", err)
			return joinMessage(agentResp.UserMessage,
				"I need a rainfall intensity of at least 0 mm/h and a duration above 0 hours. Try /forecast 12.5 3"), nil
		}
		return joinMessage(agentResp.UserMessage, uc.FormatAssessment(a)), nil

	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil

	default:
		log.Printf("Agent returned unexpected command: %s", agentResp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}
}

func joinMessage(prefix, body string) string {
	if prefix == "" {
		return body
	}
	return prefix + "\n\n" + body
}
