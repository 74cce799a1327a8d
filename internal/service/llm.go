package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mealforge/backend/config"
	"github.com/mealforge/backend/internal/model"
	"github.com/mealforge/backend/internal/types"
)

const (
	maxGenerationAttempts = 3
	defaultBackoffBase    = 500 * time.Millisecond
)

// recipeSchema is the exact output contract sent to the generation service.
const recipeSchema = `{
    "title": "Recipe name",
    "description": "Brief description of the recipe",
    "cookTime": 30,
    "difficulty": "Easy/Medium/Hard",
    "servings": 4,
    "ingredients": [
        {"name": "flour", "amount": "2 cups"},
        {"name": "sugar", "amount": "1 cup"}
    ],
    "steps": [
        {"id": 1, "instruction": "Mix the dry ingredients", "duration": 5},
        {"id": 2, "instruction": "Bake at 350F", "duration": 30}
    ]
}`

// LLMService turns a free-text request into a validated Recipe by calling the
// external chat-completions endpoint, with retry/backoff on transient
// failures. Image resolution is delegated to the ImageResolver.
type LLMService struct {
	apiKey string
	apiURL string
	client *http.Client
	images ImageResolver

	// sleep and backoffBase are injectable for tests.
	sleep       func(time.Duration)
	backoffBase time.Duration
}

// NewLLMService creates a new LLMService instance.
func NewLLMService(cfg *config.Config, images ImageResolver) (*LLMService, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY or LLM_API_KEY_FILE must be set")
	}

	apiURL := cfg.LLMAPIURL
	if apiURL == "" {
		apiURL = "https://api.deepseek.com/v1/chat/completions"
	}

	return &LLMService{
		apiKey: cfg.LLMAPIKey,
		apiURL: apiURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		images:      images,
		sleep:       time.Sleep,
		backoffBase: defaultBackoffBase,
	}, nil
}

// chatMessage represents a message in the chat
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest represents a request to the chat-completions API
type chatRequest struct {
	Model            string            `json:"model"`
	Messages         []chatMessage     `json:"messages"`
	ResponseFormat   map[string]string `json:"response_format"`
	Temperature      float64           `json:"temperature"`
	TopP             float64           `json:"top_p"`
	FrequencyPenalty float64           `json:"frequency_penalty"`
	PresencePenalty  float64           `json:"presence_penalty"`
}

// flexInt accepts a JSON number or a numeric string, since the model is not
// reliable about which one it emits.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexInt(int(num))
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		fields := strings.Fields(strings.TrimSpace(str))
		if len(fields) > 0 {
			var n int
			if _, err := fmt.Sscanf(fields[0], "%d", &n); err == nil {
				*f = flexInt(n)
				return nil
			}
		}
		// Non-numeric strings fall through to the default.
		*f = 0
		return nil
	}

	return fmt.Errorf("invalid numeric value: %s", data)
}

// recipePayload is the structured portion of a generation response.
type recipePayload struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	CookTime    flexInt            `json:"cookTime"`
	Difficulty  string             `json:"difficulty"`
	Servings    flexInt            `json:"servings"`
	Ingredients []model.Ingredient `json:"ingredients"`
	Steps       []struct {
		ID          int     `json:"id"`
		Instruction string  `json:"instruction"`
		Duration    flexInt `json:"duration"`
	} `json:"steps"`
}

// Generate produces a validated Recipe for a free-text query. It retries
// transient upstream failures with exponential backoff, up to three attempts;
// structural failures on the first response are never retried.
func (s *LLMService) Generate(ctx context.Context, query string) (*model.Recipe, error) {
	var lastErr error

	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		content, err := s.complete(ctx, query)
		if err != nil {
			kind := classifyFailure(err)
			lastErr = err
			if !isRetryable(kind) {
				return nil, &types.GenerationError{Kind: kind, Err: err}
			}
			if attempt == maxGenerationAttempts {
				return nil, &types.GenerationError{Kind: kind, Err: err}
			}
			delay := s.backoffBase << (attempt - 1)
			log.Printf("[LLMService] attempt %d/%d failed (%s), retrying in %s: %v",
				attempt, maxGenerationAttempts, kind, delay, err)
			s.sleep(delay)
			continue
		}

		payload, err := parseRecipePayload(content)
		if err != nil {
			// An unusable payload is not a transient condition.
			return nil, err
		}

		return s.buildRecipe(ctx, query, payload), nil
	}

	return nil, &types.GenerationError{Kind: classifyFailure(lastErr), Err: lastErr}
}

// complete performs a single chat-completions call and returns the raw
// response content.
func (s *LLMService) complete(ctx context.Context, query string) (string, error) {
	messages := []chatMessage{
		{
			Role: "system",
			Content: "You are a professional chef. Respond with exactly one JSON object " +
				"matching this structure, and nothing else:\n" + recipeSchema + "\n" +
				"Note: cookTime and duration are minutes as numbers. " +
				"The difficulty field MUST be one of Easy, Medium or Hard.",
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Generate a recipe for: %s", query),
		},
	}

	reqBody := chatRequest{
		Model:    "deepseek-chat",
		Messages: messages,
		ResponseFormat: map[string]string{
			"type": "json_object",
		},
		Temperature:      0.9,
		TopP:             0.9,
		FrequencyPenalty: 0.5,
		PresencePenalty:  0.5,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &upstreamStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in API response")
	}

	return result.Choices[0].Message.Content, nil
}

// parseRecipePayload locates the structured portion of the response text,
// parses it, and validates the required fields.
func parseRecipePayload(content string) (*recipePayload, error) {
	raw, err := extractJSONObject(content)
	if err != nil {
		return nil, &types.ValidationError{Field: "json payload"}
	}

	var payload recipePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		log.Printf("[LLMService] failed to unmarshal recipe JSON: %v", err)
		return nil, &types.ValidationError{Field: "json payload"}
	}

	if strings.TrimSpace(payload.Title) == "" {
		return nil, &types.ValidationError{Field: "title"}
	}
	if len(payload.Ingredients) == 0 {
		return nil, &types.ValidationError{Field: "ingredients"}
	}
	if len(payload.Steps) == 0 {
		return nil, &types.ValidationError{Field: "steps"}
	}

	return &payload, nil
}

// extractJSONObject returns the first balanced top-level {...} span in s.
// The model wraps its JSON in prose often enough that a plain unmarshal of
// the whole content is not an option.
func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON object in response")
}

// buildRecipe converts a validated payload into a Recipe: defaults for
// missing fields, sequential step ids, a single resolved cover image shared
// by every step, and a fresh id and creation timestamp.
func (s *LLMService) buildRecipe(ctx context.Context, query string, payload *recipePayload) *model.Recipe {
	cookTime := int(payload.CookTime)
	if cookTime <= 0 {
		cookTime = model.DefaultCookTime
	}
	servings := int(payload.Servings)
	if servings <= 0 {
		servings = model.DefaultServings
	}

	// One resolver call per generation keeps external call volume bounded.
	image := s.images.ResolveImage(ctx, payload.Title+" "+query)

	steps := make([]model.Step, len(payload.Steps))
	for i, st := range payload.Steps {
		duration := int(st.Duration)
		if duration < 0 {
			duration = 0
		}
		steps[i] = model.Step{
			Instruction: st.Instruction,
			Duration:    duration,
			Image:       image,
		}
	}
	model.RenumberSteps(steps)

	return &model.Recipe{
		ID:          model.NewRecipeID(),
		Title:       payload.Title,
		Description: payload.Description,
		Image:       image,
		CookTime:    cookTime,
		Difficulty:  model.ParseDifficulty(payload.Difficulty),
		Servings:    servings,
		Ingredients: payload.Ingredients,
		Steps:       steps,
		Rating:      0,
		IsFavorite:  false,
		CreatedAt:   time.Now().UTC(),
	}
}

// upstreamStatusError is a non-2xx reply from the generation service.
type upstreamStatusError struct {
	Status int
	Body   string
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// classifyFailure maps an upstream failure onto a user-facing category by
// matching the signal keywords the service is known to emit.
func classifyFailure(err error) types.GenerationErrorKind {
	if err == nil {
		return types.GenerationGeneric
	}

	if statusErr, ok := err.(*upstreamStatusError); ok {
		switch {
		case statusErr.Status == http.StatusTooManyRequests:
			return types.GenerationRateLimited
		case statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden:
			return types.GenerationConfig
		case statusErr.Status == http.StatusServiceUnavailable || statusErr.Status >= 500:
			return types.GenerationBusy
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota"):
		return types.GenerationRateLimited
	case strings.Contains(msg, "overload") || strings.Contains(msg, "busy") ||
		strings.Contains(msg, "unavailable"):
		return types.GenerationBusy
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") ||
		strings.Contains(msg, "connection") || strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network"):
		return types.GenerationNetwork
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return types.GenerationConfig
	default:
		return types.GenerationGeneric
	}
}

func isRetryable(kind types.GenerationErrorKind) bool {
	switch kind {
	case types.GenerationBusy, types.GenerationRateLimited, types.GenerationNetwork:
		return true
	default:
		return false
	}
}
