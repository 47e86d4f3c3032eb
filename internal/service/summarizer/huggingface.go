package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"lexibrief/internal/config"
	"lexibrief/internal/models"
)

const (
	defaultHFBaseURL = "https://router.huggingface.co/hf-inference/models"
	defaultHFModel   = "facebook/bart-large-cnn"
	hfErrorBodyLimit = 4096

	readyInput     = "LexiBrief checks that the summarization model answers before it starts serving requests."
	readyMinLength = 1
	readyMaxLength = 16
)

type hfParameters struct {
	MinLength  int    `json:"min_length"`
	MaxLength  int    `json:"max_length"`
	DoSample   bool   `json:"do_sample"`
	Truncation string `json:"truncation"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// huggingFaceEngine calls the hosted summarization pipeline of a seq2seq
// model. Inputs beyond the model window are truncated server side.
type huggingFaceEngine struct {
	client   *http.Client
	endpoint string
	model    string
	token    string
	hosted   bool
}

func newHuggingFaceEngine(pc config.ProviderConfig, client *http.Client) *huggingFaceEngine {
	if client == nil {
		client = &http.Client{Timeout: engineHTTPTimeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(pc.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultHFBaseURL
	}
	modelName := strings.Trim(strings.TrimSpace(pc.Model), "/")
	if modelName == "" {
		modelName = defaultHFModel
	}
	return &huggingFaceEngine{
		client:   client,
		endpoint: baseURL + "/" + modelName,
		model:    modelName,
		token:    pc.APIKey,
		hosted:   baseURL == defaultHFBaseURL,
	}
}

func (e *huggingFaceEngine) Name() string { return config.ProviderHuggingFace + ":" + e.model }

func (e *huggingFaceEngine) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	payload, err := json.Marshal(hfRequest{
		Inputs: text,
		Parameters: hfParameters{
			MinLength:  minLength,
			MaxLength:  maxLength,
			DoSample:   false,
			Truncation: "only_first",
		},
		Options: hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", fmt.Errorf("encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newHFStatusError(resp.StatusCode, body)
	}

	var summaries []hfSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		var apiErr hfError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", errors.New(apiErr.Error)
		}
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	if len(summaries) == 0 {
		return "", errors.New("inference api returned no summary")
	}
	return summaries[0].SummaryText, nil
}

// Ready runs one short summarization so that a missing token, a wrong model
// name or an unreachable endpoint is found at startup. A loading or
// rate-limited model still counts as ready.
func (e *huggingFaceEngine) Ready(ctx context.Context) error {
	if e.hosted && e.token == "" {
		return fmt.Errorf("%w: hosted inference needs an api token (HF_TOKEN)", models.ErrUnavailable)
	}
	_, err := e.Summarize(ctx, readyInput, readyMinLength, readyMaxLength)
	if err == nil {
		return nil
	}
	var statusErr *hfStatusError
	if errors.As(err, &statusErr) && !statusErr.unavailable() {
		log.Warn().Err(err).Str("engine", e.Name()).Msg("summarizer reachable but not serving yet")
		return nil
	}
	return err
}

// hfStatusError is a non-2xx answer of the inference API. Auth and
// missing-model statuses unwrap to models.ErrUnavailable.
type hfStatusError struct {
	Status  int
	Message string
}

func newHFStatusError(status int, body []byte) *hfStatusError {
	var apiErr hfError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return &hfStatusError{Status: status, Message: apiErr.Error}
	}
	if len(body) > hfErrorBodyLimit {
		body = body[:hfErrorBodyLimit]
	}
	return &hfStatusError{Status: status, Message: strings.TrimSpace(string(body))}
}

func (e *hfStatusError) Error() string {
	return fmt.Sprintf("inference api status %d: %s", e.Status, e.Message)
}

func (e *hfStatusError) unavailable() bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

func (e *hfStatusError) Unwrap() error {
	if e.unavailable() {
		return models.ErrUnavailable
	}
	return nil
}
