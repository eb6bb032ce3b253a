package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const chatCompletionsEndpoint = "/chat/completions"

// AIClient wraps the LLM provider used for schema generation, question
// generation, answer grading and error explanations.
type AIClient interface {
	GenerateSchema(ctx context.Context, prompt, model string) (string, error)
	GenerateSeedData(ctx context.Context, schemaDDL, model string) (string, error)
	GenerateQuestions(ctx context.Context, schemaDDL, difficulty, topic string, count int, model string) ([]string, error)
	CheckAnswer(ctx context.Context, question, sqlQuery, tableHead, model string) (bool, string, error)
	ExplainError(ctx context.Context, errorMessage, faultySQL, model string) (string, error)
}

type openAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewOpenAIClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) AIClient {
	return &openAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "AIClient").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *openAIClient) complete(ctx context.Context, model, system, user string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		reqBody.ResponseFormat = map[string]any{"type": "json_object"}
	}

	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsEndpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call LLM provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read LLM response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode LLM response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("LLM request failed: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("LLM request failed: HTTP %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("LLM response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

const schemaSystemPrompt = `You are a schema generation assistant for an SQL learning product.
Given a natural language description of the data the user wants to store, produce a SQLite
CREATE TABLE script with sensible names, appropriate column types and primary keys.
Do not use foreign key constraints. Respond with JSON: {"schema_sql": "..."}.`

func (c *openAIClient) GenerateSchema(ctx context.Context, prompt, model string) (string, error) {
	content, err := c.complete(ctx, model, schemaSystemPrompt, prompt, true)
	if err != nil {
		return "", err
	}
	var out struct {
		SchemaSQL string `json:"schema_sql"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("parse schema response: %w", err)
	}
	if strings.TrimSpace(out.SchemaSQL) == "" {
		return "", fmt.Errorf("LLM returned empty schema")
	}
	return out.SchemaSQL, nil
}

const seedSystemPrompt = `You are given a SQLite table schema. Produce INSERT statements seeding
every table with at least 25 rows of realistic data. Respect the insertion order implied by any
id references between tables. Respond with JSON: {"insert_sql": "..."}.`

func (c *openAIClient) GenerateSeedData(ctx context.Context, schemaDDL, model string) (string, error) {
	content, err := c.complete(ctx, model, seedSystemPrompt, schemaDDL, true)
	if err != nil {
		return "", err
	}
	var out struct {
		InsertSQL string `json:"insert_sql"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("parse seed data response: %w", err)
	}
	if strings.TrimSpace(out.InsertSQL) == "" {
		return "", fmt.Errorf("LLM returned empty seed data")
	}
	return out.InsertSQL, nil
}

var questionPrompts = map[string]string{
	"basic": `Generate beginner-level SQL questions for the given schema: selecting columns,
WHERE filters, ORDER BY, simple aggregates, LIMIT.`,
	"intermediate": `Generate intermediate-level SQL questions for the given schema: multi-table
JOINs, GROUP BY with aggregates, HAVING, subqueries, IN/BETWEEN/LIKE filters.`,
	"advanced": `Generate advanced SQL questions for the given schema: correlated subqueries,
CTEs, window functions, multi-level aggregation, set operations.`,
}

func (c *openAIClient) GenerateQuestions(ctx context.Context, schemaDDL, difficulty, topic string, count int, model string) ([]string, error) {
	tierPrompt, ok := questionPrompts[difficulty]
	if !ok {
		tierPrompt = questionPrompts["basic"]
	}
	system := fmt.Sprintf(`You are part of an AI-powered SQL training system. %s
Produce exactly %d questions. Respond with JSON: {"questions": ["...", ...]}.`, tierPrompt, count)
	user := fmt.Sprintf("Schema:\n%s\n\nTopic: %s", schemaDDL, topic)

	content, err := c.complete(ctx, model, system, user, true)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse questions response: %w", err)
	}
	if len(out.Questions) == 0 {
		return nil, fmt.Errorf("LLM returned no questions")
	}
	return out.Questions, nil
}

const checkSystemPrompt = `You are an AI SQL trainer. You are given a question, the SQL a user
wrote to answer it, and the first rows of the result. Decide whether the SQL correctly answers
the question and give a concise two-line justification.
Respond with JSON: {"is_correct": true|false, "explanation": "..."}.`

func (c *openAIClient) CheckAnswer(ctx context.Context, question, sqlQuery, tableHead, model string) (bool, string, error) {
	user := fmt.Sprintf("Question: %s\n\nSQL:\n%s\n\nResult head:\n%s", question, sqlQuery, tableHead)
	content, err := c.complete(ctx, model, checkSystemPrompt, user, true)
	if err != nil {
		return false, "", err
	}
	var out struct {
		IsCorrect   bool   `json:"is_correct"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return false, "", fmt.Errorf("parse grading response: %w", err)
	}
	return out.IsCorrect, out.Explanation, nil
}

const explainSystemPrompt = `You help SQL learners understand their mistakes. Given an engine
error message and the SQL that caused it, explain what went wrong in one beginner-friendly
paragraph, without jargon. Respond with JSON: {"explanation": "..."}.`

func (c *openAIClient) ExplainError(ctx context.Context, errorMessage, faultySQL, model string) (string, error) {
	user := fmt.Sprintf("Error:\n%s\n\nSQL:\n%s", errorMessage, faultySQL)
	content, err := c.complete(ctx, model, explainSystemPrompt, user, true)
	if err != nil {
		return "", err
	}
	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("parse explanation response: %w", err)
	}
	return out.Explanation, nil
}
