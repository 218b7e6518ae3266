// Package google adapts Google's Gemini API to model.ChatModel.
package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/researchflow-go/graph/model"
)

const defaultModel = "gemini-2.5-flash"

// ChatModel implements model.ChatModel for Gemini.
//
// A fresh API client is created per call; the genai client is lightweight
// and tying its lifetime to the call keeps Chat safe for concurrent use
// without shared-connection bookkeeping.
type ChatModel struct {
	apiKey    string
	modelName string
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName picks
// a current default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = defaultModel
	}
	return &ChatModel{apiKey: apiKey, modelName: modelName}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}
	if m.apiKey == "" {
		return model.ChatOut{}, fmt.Errorf("google api key required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("create google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	gm := client.GenerativeModel(m.modelName)
	if len(tools) > 0 {
		gm.Tools = convertTools(tools)
	}
	if sys := systemText(messages); sys != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(sys)}}
	}

	resp, err := gm.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return model.ChatOut{}, classifyErr("google", err)
	}
	return convertResponse(m.modelName, resp), nil
}

func systemText(messages []model.Message) string {
	var sys string
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if sys != "" {
				sys += "\n"
			}
			sys += msg.Content
		}
	}
	return sys
}

func convertMessages(messages []model.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Role == model.RoleSystem || msg.Content == "" {
			continue
		}
		parts = append(parts, genai.Text(msg.Content))
	}
	return parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema maps a JSON Schema object one level deep, which covers the
// flat argument objects research tools declare.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			prop := &genai.Schema{}
			if pm, ok := val.(map[string]any); ok {
				if ts, ok := pm["type"].(string); ok {
					prop.Type = convertType(ts)
				}
				if desc, ok := pm["description"].(string); ok {
					prop.Description = desc
				}
			}
			out.Properties[key] = prop
		}
	}

	switch required := schema["required"].(type) {
	case []string:
		out.Required = required
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}

func convertType(ts string) genai.Type {
	switch ts {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(modelName string, resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{Model: modelName}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out
}
