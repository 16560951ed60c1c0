package services

import "google.golang.org/genai"

const (
	TariffToolName = "TariffRagTool"
	EmailToolName  = "EmailSummaryTool"
)

// GetAllTools declares the functions the model may call.
func GetAllTools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        TariffToolName,
					Description: "Searches for tariff information and customs regulations for different countries.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"query": {
								Type:        genai.TypeString,
								Description: "Query about tariffs or customs regulations.",
							},
							"country": {
								Type:        genai.TypeString,
								Description: "Country to search tariff information about, e.g. 'ecuador'.",
							},
						},
						Required: []string{"query", "country"},
					},
				},
				{
					Name:        EmailToolName,
					Description: "Send an email to a specified recipient with a given subject and a summary of the conversation.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"to": {
								Type:        genai.TypeString,
								Description: "Email address of the recipient.",
							},
							"subject": {
								Type:        genai.TypeString,
								Description: "Subject of the email.",
							},
							"conversation_summary": {
								Type:        genai.TypeString,
								Description: "Summary of the conversation to include in the email, as HTML.",
							},
						},
						Required: []string{"to", "subject", "conversation_summary"},
					},
				},
			},
		},
	}
}
