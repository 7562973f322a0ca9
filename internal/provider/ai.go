package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/scoring"
)

// AIClient DeepSeek 健康度分析适配器
type AIClient struct {
	cfg    config.AIConfig
	client *http.Client
	logger *logrus.Logger
}

// NewAIClient 创建 AI 适配器
func NewAIClient(cfg config.AIConfig, logger *logrus.Logger) *AIClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// AnalyzeIngredients 对配料列表生成健康度分析
// 失败时降级到规则评分引擎,仅上下文取消/超时会返回错误
func (c *AIClient) AnalyzeIngredients(ctx context.Context, ingredients []model.Ingredient) (*model.HealthAnalysis, error) {
	// 第一级降级:未配置凭据,直接使用规则评分
	if !c.cfg.IsConfigured() {
		c.logger.Info("AI provider not configured, using rule-based scoring")
		metrics.RecordProviderFallback("ai", "unconfigured")
		analysis := scoring.Analyze(ingredients)
		return &analysis, nil
	}

	start := time.Now()
	analysis, err := c.callProvider(ctx, ingredients)
	metrics.RecordPipelineStage("analyze", time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// 第二级降级:调用失败,记录原因并使用规则评分
		c.logger.WithError(err).Warn("AI provider call failed, using rule-based scoring")
		metrics.RecordProviderFallback("ai", "error")
		fallback := scoring.Analyze(ingredients)
		return &fallback, nil
	}

	return analysis, nil
}

// chatRequest DeepSeek chat completion 请求体
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse DeepSeek chat completion 响应体
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// callProvider 调用 DeepSeek chat completion 接口并解析分析结果
func (c *AIClient) callProvider(ctx context.Context, ingredients []model.Ingredient) (*model.HealthAnalysis, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: buildAnalysisPrompt(ingredients)},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AI API request failed: %s", resp.Status)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("failed to decode AI response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("AI response contains no choices")
	}

	return c.parseAnalysis(chat.Choices[0].Message.Content, ingredients)
}

// buildAnalysisPrompt 构建分析提示词
func buildAnalysisPrompt(ingredients []model.Ingredient) string {
	names := make([]string, 0, len(ingredients))
	for _, ingredient := range ingredients {
		names = append(names, ingredient.Name)
	}

	return fmt.Sprintf(`请作为一名专业的营养师,分析以下食品配料的健康度:

配料列表:%s

请按照以下JSON格式返回分析结果:

{
  "overallScore": 数字(1-10分,10分最健康),
  "ingredientScores": [
    {
      "ingredient": "配料名称",
      "score": 数字(1-10分),
      "reason": "评分理由,简洁明了",
      "category": "配料分类(如:主要成分、添加糖、防腐剂等)",
      "healthImpact": "健康影响(对健康有益/需要注意/中性影响)"
    }
  ],
  "analysisReport": "整体分析报告,包含优缺点",
  "recommendations": "健康建议,用\n分隔多条建议"
}

要求:
1. 评分要客观公正,基于营养学原理
2. 理由要简洁明了,易于理解
3. 分类要准确
4. 建议要实用可行
5. 只返回JSON,不要其他文字`, strings.Join(names, "、"))
}

// parseAnalysis 解析 AI 回复中的 JSON 分析结果
// 第三级降级:尽量挽救可解析的部分,缺失的配料补中性评分;
// 完全无法解析时整体退回规则评分
func (c *AIClient) parseAnalysis(content string, ingredients []model.Ingredient) (*model.HealthAnalysis, error) {
	jsonText := extractJSON(content)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in AI response")
	}

	var parsed model.HealthAnalysis
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse AI analysis: %w", err)
	}
	if parsed.OverallScore == 0 || len(parsed.IngredientScores) == 0 {
		return nil, fmt.Errorf("AI analysis is incomplete")
	}

	// 规范化每个配料评分
	scored := make(map[string]bool, len(parsed.IngredientScores))
	for i := range parsed.IngredientScores {
		item := &parsed.IngredientScores[i]
		if item.Ingredient == "" {
			item.Ingredient = "未知配料"
		}
		item.Score = clampScore(item.Score)
		if item.Reason == "" {
			item.Reason = "暂无详细分析"
		}
		if item.Category == "" {
			item.Category = "其他"
		}
		if item.HealthImpact == "" {
			item.HealthImpact = "中性影响"
		}
		scored[item.Ingredient] = true
	}

	// 为缺失的配料补中性默认评分,而不是丢弃整个响应
	for _, ingredient := range ingredients {
		if !scored[ingredient.Name] {
			parsed.IngredientScores = append(parsed.IngredientScores, model.IngredientScore{
				Ingredient:   ingredient.Name,
				Score:        scoring.NeutralScore,
				Reason:       "常见食品配料,营养价值中等",
				Category:     "其他",
				HealthImpact: "中性影响",
			})
		}
	}

	parsed.OverallScore = clampScore(parsed.OverallScore)
	if parsed.AnalysisReport == "" {
		parsed.AnalysisReport = "分析报告生成中..."
	}
	if parsed.Recommendations == "" {
		parsed.Recommendations = "建议适量食用"
	}

	return &parsed, nil
}

// extractJSON 从自由文本中提取第一个 JSON 对象
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// clampScore 将评分限制在 [1,10]
func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}
