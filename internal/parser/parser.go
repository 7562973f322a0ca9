// Package parser 从 OCR 原始文本中提取结构化配料列表
// 纯函数实现,无 I/O 无状态
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zidanDirk/foodsafety/internal/model"
)

// 常见的配料表关键词
var ingredientKeywords = []string{
	"配料表", "成分表", "原料表",
	"配料", "成分", "原料", "配方", "组成",
	"ingredients", "composition", "contains",
}

// 配料分隔符: 半角/全角逗号、顿号、分号、间隔号
var separatorPattern = regexp.MustCompile(`[,，、；;·]`)

var (
	parenPattern     = regexp.MustCompile(`[（(][^（）()]*[）)]`)
	colonPattern     = regexp.MustCompile(`[：:]`)
	numberingPattern = regexp.MustCompile(`^\d+\.?\s*`)
)

// 单个配料名称的长度窗口（按字符数）
// 过短视为噪声,过长视为非单一配料
const (
	minIngredientLen = 1
	maxIngredientLen = 30
)

// ExtractIngredients 从原始文本中提取配料列表
// 未找到配料关键词时返回 hasIngredients=false、空列表、置信度 0
func ExtractIngredients(rawText string) model.IngredientList {
	if strings.TrimSpace(rawText) == "" {
		return model.IngredientList{Ingredients: []model.Ingredient{}}
	}

	lowerText := strings.ToLower(rawText)

	// 定位第一个关键词出现的位置
	start := -1
	for _, keyword := range ingredientKeywords {
		if idx := strings.Index(lowerText, strings.ToLower(keyword)); idx >= 0 {
			if start < 0 || idx < start {
				start = idx
			}
		}
	}
	if start < 0 {
		return model.IngredientList{Ingredients: []model.Ingredient{}}
	}

	// 从第一个关键词开始截取,并移除所有关键词出现
	segment := rawText[start:]
	segment = strings.ReplaceAll(segment, "\n", " ")
	for _, keyword := range ingredientKeywords {
		segment = removeKeyword(segment, keyword)
	}

	// 按分隔符拆分候选配料
	ingredients := make([]model.Ingredient, 0)
	for _, token := range separatorPattern.Split(segment, -1) {
		name := cleanIngredientName(token)
		if name == "" {
			continue
		}
		length := utf8.RuneCountInString(name)
		if length < minIngredientLen || length > maxIngredientLen {
			continue
		}
		ingredients = append(ingredients, model.Ingredient{
			Name:     name,
			Position: len(ingredients) + 1,
		})
	}

	return model.IngredientList{
		Ingredients:          ingredients,
		HasIngredients:       len(ingredients) > 0,
		ExtractionConfidence: extractionConfidence(len(ingredients)),
	}
}

// cleanIngredientName 清理单个配料名称
// 移除括号内容、冒号、开头的编号并去除首尾空白
func cleanIngredientName(token string) string {
	name := parenPattern.ReplaceAllString(token, "")
	name = colonPattern.ReplaceAllString(name, "")
	name = numberingPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// removeKeyword 按大小写不敏感的方式移除关键词出现
func removeKeyword(s, keyword string) string {
	lowerKeyword := strings.ToLower(keyword)
	for {
		idx := strings.Index(strings.ToLower(s), lowerKeyword)
		if idx < 0 {
			return s
		}
		s = s[:idx] + s[idx+len(keyword):]
	}
}

// extractionConfidence 提取置信度
// 单调递增并封顶的启发式: min(0.9, 0.3 + 0.1 * n)
func extractionConfidence(count int) float64 {
	if count == 0 {
		return 0
	}
	confidence := 0.3 + 0.1*float64(count)
	if confidence > 0.9 {
		confidence = 0.9
	}
	return confidence
}
