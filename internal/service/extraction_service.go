package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/llm"
)

type completionClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

const extractionSystemPrompt = `당신은 특수교육 활동 기록 문서에서 구조화된 활동 기록을 추출하는 도우미입니다.
주어진 문서 텍스트에서 개별 활동 기록을 모두 찾아 JSON으로 반환하세요.
응답은 반드시 {"records": [...]} 형태의 JSON 객체여야 합니다.
각 record는 다음 필드를 가질 수 있습니다 (없으면 생략):
date(YYYY-MM-DD), students([{"name": "..."}]), activity_name, activity_type,
note, duration_minutes(숫자), level(상/중/하), ability([문자열]),
score(0-100), score_explanation, emotion_summary, emotion_cause,
observed_behaviors, emotion_tags([문자열]), raw_text_cleaned.
문서에 없는 내용을 지어내지 마세요.`

// ExtractionService turns raw document text into normalized activity records
// by way of an LLM structuring pass.
type ExtractionService struct {
	client  completionClient
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExtractionService constructs the extraction service.
func NewExtractionService(client completionClient, metrics *MetricsService, logger *zap.Logger) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionService{client: client, metrics: metrics, logger: logger}
}

// ExtractRecords asks the model to structure the document text and normalizes
// every returned record. Records the model could not populate come back with
// neutral defaults rather than being dropped.
func (s *ExtractionService) ExtractRecords(ctx context.Context, rawText string) ([]analysis.ActivityAnalysis, error) {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document text is empty")
	}

	start := time.Now()
	content, err := s.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: rawText},
		},
		JSONOutput: true,
	})
	if s.metrics != nil {
		s.metrics.ObserveLLMRequest("extract", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "extraction request failed")
	}

	records, err := decodeRecords(content)
	if err != nil {
		s.logger.Warn("extraction returned unparseable payload", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "extraction returned invalid JSON")
	}

	results := make([]analysis.ActivityAnalysis, 0, len(records))
	for _, record := range records {
		results = append(results, analysis.Normalize(record))
	}
	return results, nil
}

func decodeRecords(content string) ([]analysis.RawRecord, error) {
	content = stripCodeFence(content)

	var wrapped struct {
		Records []analysis.RawRecord `json:"records"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.Records != nil {
		return wrapped.Records, nil
	}

	var list []analysis.RawRecord
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return list, nil
	}

	var single analysis.RawRecord
	if err := json.Unmarshal([]byte(content), &single); err == nil && len(single) > 0 {
		return []analysis.RawRecord{single}, nil
	}

	return nil, fmt.Errorf("no records found in model output")
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
