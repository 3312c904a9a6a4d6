package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/xeipuuv/gojsonschema"

	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
)

const visionSystemPrompt = `You are a retail product identification specialist. Analyze the image and extract product information.

Return ONLY a JSON object with these fields:
- product_name: The type and name of the product (e.g., "Wireless Mouse", "Running Shoes")
- category: One of: Electronics, Clothing, Groceries, Home & Garden, Sports & Outdoors, Books & Media, Toys & Games, Health & Beauty
- description: Detailed description of the product
- color: Primary color(s) of the product
- keywords: Array of search keywords (3-5 keywords)
- confidence: Your confidence level (0.0 to 1.0)`

const identificationSchema = `{
  "type": "object",
  "required": ["product_name", "category", "keywords"],
  "properties": {
    "product_name": {"type": "string", "minLength": 1},
    "category": {"type": "string"},
    "description": {"type": "string"},
    "color": {"type": "string"},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var identificationValidator = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(identificationSchema))
	if err != nil {
		panic(err)
	}
	return s
}()

var ErrUnreadableIdentification = errors.New("vision model returned an unreadable identification")

// Identification is what the vision model extracted from a product photo.
type Identification struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Keywords    []string `json:"keywords"`
	Confidence  float64  `json:"confidence"`
}

type Identifier interface {
	Identify(ctx context.Context, text, image string) (Identification, error)
}

// OpenAIVision identifies products with a multimodal chat completions model.
type OpenAIVision struct {
	client *openaisdk.Client
	model  string
}

var _ Identifier = (*OpenAIVision)(nil)

func NewOpenAIVision(client *openaisdk.Client, model string) (*OpenAIVision, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is nil", contractx.ErrValidation)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%w: vision model is required", contractx.ErrValidation)
	}
	return &OpenAIVision{client: client, model: model}, nil
}

func (v *OpenAIVision) Identify(ctx context.Context, text, image string) (Identification, error) {
	url, err := ImageURL(image)
	if err != nil {
		return Identification{}, err
	}
	if strings.TrimSpace(text) == "" {
		text = "Identify this product"
	}

	completion, err := v.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(v.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(visionSystemPrompt),
			openaisdk.UserMessage([]openaisdk.ChatCompletionContentPartUnionParam{
				openaisdk.TextContentPart(text),
				openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Identification{}, err
		}
		return Identification{}, fmt.Errorf("%w: model=%s: %v", contractx.ErrModelInvoke, v.model, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return Identification{}, fmt.Errorf("%w: model=%s returned no choices", contractx.ErrEmptyResponse, v.model)
	}
	return ParseIdentification(completion.Choices[0].Message.Content)
}

// ParseIdentification reads the model's JSON answer, tolerating a markdown
// code fence around it.
func ParseIdentification(content string) (Identification, error) {
	raw := stripCodeFence(content)
	if raw == "" {
		return Identification{}, ErrUnreadableIdentification
	}

	res, err := identificationValidator.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Identification{}, fmt.Errorf("%w: %v", ErrUnreadableIdentification, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Identification{}, fmt.Errorf("%w: %s", ErrUnreadableIdentification, strings.Join(msgs, "; "))
	}

	id := Identification{Confidence: 1}
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identification{}, fmt.Errorf("%w: %v", ErrUnreadableIdentification, err)
	}
	return id, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if _, after, ok := strings.Cut(s, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(s, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return s
}

// ImageURL turns an http(s) url, a data url or raw base64 into something a
// vision model accepts.
func ImageURL(image string) (string, error) {
	image = strings.TrimSpace(image)
	switch {
	case image == "":
		return "", fmt.Errorf("%w: image is empty", contractx.ErrImageUnsupported)
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"), strings.HasPrefix(image, "data:"):
		return image, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		return "", fmt.Errorf("%w: image is not valid base64", contractx.ErrImageUnsupported)
	}
	mime := http.DetectContentType(decoded)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: unsupported content type %s", contractx.ErrImageUnsupported, mime)
	}
	return "data:" + mime + ";base64," + image, nil
}
