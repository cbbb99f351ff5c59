package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/pkg/export"
	"github.com/saessak-edu/saessak-api/pkg/llm"
)

type reportFileSaver interface {
	Save(filename string, data []byte) (string, error)
}

const reportSystemPrompt = `당신은 특수교육 교사를 돕는 보고서 작성 도우미입니다.
주어진 학생의 활동 기록 요약을 바탕으로 보호자와 공유할 수 있는
관찰 중심의 서술형 보고서를 한국어 Markdown으로 작성하세요.
구성: # 제목, ## 활동 요약, ## 정서 관찰, ## 제언.
기록에 없는 내용을 추측하거나 진단적 표현을 사용하지 마세요.`

// ReportGeneratorParams groups constructor dependencies.
type ReportGeneratorParams struct {
	Logs     dashboardLogLister
	Students studentLookup
	Client   completionClient
	PDF      *export.PDFExporter
	Files    reportFileSaver
	Metrics  *MetricsService
	Logger   *zap.Logger
}

// ReportGenerator produces the narrative artifact for one report job.
type ReportGenerator struct {
	logs     dashboardLogLister
	students studentLookup
	client   completionClient
	pdf      *export.PDFExporter
	files    reportFileSaver
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReportGenerator constructs the generator.
func NewReportGenerator(params ReportGeneratorParams) *ReportGenerator {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportGenerator{
		logs:     params.Logs,
		students: params.Students,
		client:   params.Client,
		pdf:      params.PDF,
		files:    params.Files,
		metrics:  params.Metrics,
		logger:   logger,
	}
}

// Generate builds the narrative and writes the artifact, returning the
// relative storage path.
func (g *ReportGenerator) Generate(ctx context.Context, job *models.ReportJob) (string, error) {
	student, err := g.students.GetByID(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}
	logs, err := g.logs.ListByStudent(ctx, models.ActivityLogFilter{
		StudentID: job.StudentID,
		From:      job.FromDate,
		To:        job.ToDate,
	})
	if err != nil {
		return "", fmt.Errorf("load logs: %w", err)
	}
	if len(logs) == 0 {
		return "", fmt.Errorf("no activity logs between %s and %s", job.FromDate, job.ToDate)
	}

	view := analysis.Aggregate(logs)
	prompt := buildReportPrompt(student.Name, job.FromDate, job.ToDate, view)

	start := time.Now()
	markdown, err := g.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: reportSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if g.metrics != nil {
		g.metrics.ObserveLLMRequest("report", time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("narrative completion: %w", err)
	}
	markdown = stripCodeFence(markdown)
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("narrative completion returned empty content")
	}

	var data []byte
	ext := ".md"
	if job.Format == models.ReportFormatPDF {
		title := fmt.Sprintf("%s 활동 보고서 (%s ~ %s)", student.Name, job.FromDate, job.ToDate)
		rendered, renderErr := g.pdf.RenderMarkdown(markdown, title)
		if renderErr != nil {
			return "", fmt.Errorf("render pdf: %w", renderErr)
		}
		data = rendered
		ext = ".pdf"
	} else {
		data = []byte(markdown)
	}

	relPath := filepath.Join(time.Now().UTC().Format("2006/01"), job.ID+ext)
	if _, err := g.files.Save(relPath, data); err != nil {
		return "", fmt.Errorf("store report file: %w", err)
	}
	return relPath, nil
}

func buildReportPrompt(studentName, from, to string, view analysis.DashboardView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "학생: %s\n기간: %s ~ %s\n기록 수: %d\n\n", studentName, from, to, view.RecordCount)

	if len(view.EmotionDistribution) > 0 {
		b.WriteString("감정 분포:\n")
		for _, emotion := range view.EmotionDistribution {
			fmt.Fprintf(&b, "- %s: %d회 (%d%%)\n", emotion.Name, emotion.Count, emotion.Value)
		}
		b.WriteString("\n")
	}

	if len(view.ActivitySeries) > 0 {
		b.WriteString("일자별 활동 시간(분):\n")
		for _, day := range view.ActivitySeries {
			fmt.Fprintf(&b, "- %s: %d분\n", day.Date, day.Minutes)
		}
		b.WriteString("\n")
	}

	b.WriteString("활동 기록:\n")
	for _, row := range view.ActivityDetails {
		date := row.Date
		if date == "" {
			date = "날짜 미상"
		}
		fmt.Fprintf(&b, "- [%s] %s", date, row.Activity)
		if row.Emotion != "" {
			fmt.Fprintf(&b, " / 감정: %s", row.Emotion)
		}
		if row.Comment != "" {
			fmt.Fprintf(&b, " / %s", truncateText(row.Comment, 200))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
