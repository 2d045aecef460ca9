// Package composer 负责把检索命中组装为有依据的回答。
package composer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/retriever"
	"pdf-rag-go/pkg/llm"
	"pdf-rag-go/pkg/log"
)

const (
	// 最多取前 8 条命中拼接上下文，检索返回的排序即权威排序，不再重排
	maxContextHits = 8
	// 单个分块在上下文中的最大字符数
	maxChunkChars = 1200

	groundedSystemPrompt = "You are a precise assistant."
	fallbackSystemPrompt = "You are a helpful assistant."
)

// Answer 是一次回答组装的结果。
type Answer struct {
	Answer     string
	Reference  *model.Reference
	Confidence int
}

// Composer 拼接 grounded prompt、调用补全服务并计算置信度与出处。
type Composer struct {
	llmClient llm.Client
}

// New 创建一个新的 Composer 实例。
func New(llmClient llm.Client) *Composer {
	return &Composer{llmClient: llmClient}
}

// Compose 根据检索结果生成回答。
//
// 检索 Fault：不调用补全服务，直接返回描述错误的回答，置信度 0；
// 零命中：以通用助手人设调用补全服务做兜底回答，置信度 0；
// 有命中：以上下文受限的 prompt 调用补全服务，置信度为首条命中得分
// 相对命中集合最高分的百分比（相对度量，不是概率），出处只取首条命中。
func (c *Composer) Compose(ctx context.Context, query string, result retriever.Result) (*Answer, error) {
	if result.Failed() {
		return &Answer{
			Answer:     fmt.Sprintf("Search Error: %s", result.Fault.Body),
			Reference:  nil,
			Confidence: 0,
		}, nil
	}

	if len(result.Hits) == 0 {
		return c.composeFallback(ctx, query)
	}
	return c.composeGrounded(ctx, query, result.Hits)
}

// composeFallback 在没有任何命中时仍尽力回答。
func (c *Composer) composeFallback(ctx context.Context, query string) (*Answer, error) {
	user := fmt.Sprintf("No relevant documents found. Still answer concisely if you can.\n\nQuestion: %s", query)
	answer, err := c.llmClient.ChatCompletion(ctx, []llm.Message{
		{Role: "system", Content: fallbackSystemPrompt},
		{Role: "user", Content: user},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("补全服务调用失败: %w", err)
	}
	return &Answer{Answer: answer, Reference: nil, Confidence: 0}, nil
}

func (c *Composer) composeGrounded(ctx context.Context, query string, hits []model.SearchHit) (*Answer, error) {
	contextText := buildContext(hits)
	user := buildGroundedPrompt(query, contextText)

	answer, err := c.llmClient.ChatCompletion(ctx, []llm.Message{
		{Role: "system", Content: groundedSystemPrompt},
		{Role: "user", Content: user},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("补全服务调用失败: %w", err)
	}

	top := hits[0]
	confidence := computeConfidence(hits)
	log.Infof("[Composer] 回答组装完成, reference: %s p%d, confidence: %d", top.File, top.Page, confidence)

	return &Answer{
		Answer: answer,
		Reference: &model.Reference{
			File:   top.File,
			Folder: top.Folder,
			Page:   top.Page,
			URL:    top.URL,
		},
		Confidence: confidence,
	}, nil
}

// buildContext 把前 maxContextHits 条命中（按检索顺序）拼成 grounding 上下文。
func buildContext(hits []model.SearchHit) string {
	if len(hits) > maxContextHits {
		hits = hits[:maxContextHits]
	}
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		chunk := h.Chunk
		if runes := []rune(chunk); len(runes) > maxChunkChars {
			chunk = string(runes[:maxChunkChars])
		}
		parts = append(parts, fmt.Sprintf("[Source: %s/%s | Page %d]\n%s", h.Folder, h.File, h.Page, chunk))
	}
	return strings.Join(parts, "\n\n")
}

// buildGroundedPrompt 构建把模型限制在给定上下文内的 user prompt。
func buildGroundedPrompt(query, contextText string) string {
	return "You MUST ONLY use the provided context below to answer.\n" +
		"Do NOT use any external knowledge or training data.\n" +
		"If the context does not contain the answer, you MUST say 'I could not find this information in the provided document.'\n\n" +
		"IMPORTANT INSTRUCTIONS:\n" +
		"- Only use document chunks that explicitly match the product or model mentioned in the question. Ignore other documents even if they look similar.\n" +
		"- Present the answer in a CLEARLY STRUCTURED FORMAT.\n" +
		"- Use numbered headings for major categories (1., 2., 3., ...).\n" +
		"- Under each heading, use bullet points (-) for details.\n" +
		"- Bold important terms (like \"Clearance\", \"Step Ladder 60°\", \"200mm\").\n" +
		"- Always include measurement units (mm, m, MPa) after numeric values.\n" +
		"- Do NOT merge everything into one long list.\n" +
		"- Do NOT add an extra summary at the end. Only the structured list.\n" +
		"- If multiple chunks give conflicting values (e.g., 25 MPa vs 32 MPa), explicitly state the differences.\n\n" +
		fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer based ONLY on the context above:", contextText, query)
}

// computeConfidence 计算首条命中得分相对集合最高分的百分比，四舍五入到整数。
// 全零得分时分母取 1，避免除零；结果范围始终在 [0, 100]。
func computeConfidence(hits []model.SearchHit) int {
	maxScore := 0.0
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore == 0 {
		maxScore = 1
	}
	raw := hits[0].Score
	return int(math.Round(raw / maxScore * 100))
}
