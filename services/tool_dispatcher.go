package services

import (
	"context"
	"fmt"

	"github/itish2003/tariff/models"

	"go.uber.org/zap"
)

const (
	tariffToolTitle  = "Searching in official documents..."
	emailToolTitle   = "Sending email..."
	genericToolTitle = "Processing..."
)

// ToolDispatcher routes model function calls to the tools by name. Every
// call yields a ToolEvent, including malformed and unknown ones.
type ToolDispatcher struct {
	tariff *TariffTool
	email  *EmailTool
}

func NewToolDispatcher(tariff *TariffTool, email *EmailTool) *ToolDispatcher {
	return &ToolDispatcher{tariff: tariff, email: email}
}

// Dispatch runs the named tool. Failures are reported in the event content
// as "Error: ..." text for the model to relay.
func (d *ToolDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) models.ToolEvent {
	zap.L().Info("tool call", zap.String("tool", name), zap.Any("args", args))

	switch name {
	case TariffToolName:
		return d.runTariff(ctx, args)
	case EmailToolName:
		return d.runEmail(ctx, args)
	default:
		return models.ToolEvent{
			Tool:    name,
			Title:   genericToolTitle,
			Content: fmt.Sprintf("Error: Unknown function '%s' requested.", name),
			Failed:  true,
		}
	}
}

func (d *ToolDispatcher) runTariff(ctx context.Context, args map[string]any) models.ToolEvent {
	event := models.ToolEvent{Tool: TariffToolName, Title: tariffToolTitle}

	rawQuery, hasQuery := args["query"]
	rawCountry, hasCountry := args["country"]
	if !hasQuery || !hasCountry {
		event.Content = "Please provide a valid object with 'query' and 'country'."
		event.Failed = true
		return event
	}
	query, okQuery := rawQuery.(string)
	country, okCountry := rawCountry.(string)
	if !okQuery || !okCountry {
		event.Content = fmt.Sprintf("Could you please provide more details about the query '%v' for the country '%v'?", rawQuery, rawCountry)
		event.Failed = true
		return event
	}

	k := 0
	if raw, ok := args["k"].(float64); ok {
		k = int(raw)
	}
	result, err := d.tariff.Query(ctx, query, country, k)
	if err != nil {
		zap.L().Error("tariff query failed", zap.String("country", country), zap.Error(err))
		event.Content = fmt.Sprintf("Error: %v", err)
		event.Failed = true
		return event
	}
	event.Content = result
	return event
}

func (d *ToolDispatcher) runEmail(ctx context.Context, args map[string]any) models.ToolEvent {
	event := models.ToolEvent{Tool: EmailToolName, Title: emailToolTitle}

	to, okTo := args["to"].(string)
	subject, okSubject := args["subject"].(string)
	summary, okSummary := args["conversation_summary"].(string)
	if !okTo || !okSubject || !okSummary {
		event.Content = "Error: 'to', 'subject' and 'conversation_summary' must be strings."
		event.Failed = true
		return event
	}

	result, err := d.email.Send(ctx, models.EmailRequest{To: to, Subject: subject, BodyHTML: summary})
	if err != nil {
		zap.L().Error("email tool failed", zap.String("to", to), zap.Error(err))
		event.Content = fmt.Sprintf("Error: %v", err)
		event.Failed = true
		return event
	}
	event.Content = result
	return event
}
