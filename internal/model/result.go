package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FileInfo 上传文件信息快照
// 创建任务时写入,之后不再变更
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Ingredient 单个配料条目
type Ingredient struct {
	Name     string `json:"name"`     // 配料名称
	Position int    `json:"position"` // 在配料表中的顺序,从 1 开始
}

// IngredientList 配料提取结果
type IngredientList struct {
	Ingredients          []Ingredient `json:"ingredients"`
	HasIngredients       bool         `json:"hasIngredients"`
	ExtractionConfidence float64      `json:"extractionConfidence"`
}

// OCRResult OCR 识别结果
// 提取阶段成功后一次性写入,同一生命周期内不再替换
type OCRResult struct {
	RawText              string         `json:"rawText"`
	Confidence           float64        `json:"confidence"`
	ExtractedIngredients IngredientList `json:"extractedIngredients"`
}

// IngredientScore 单个配料的健康度评分
type IngredientScore struct {
	Ingredient   string `json:"ingredient"`   // 配料名称
	Score        int    `json:"score"`        // 1-10 分,10 分最健康
	Reason       string `json:"reason"`       // 评分理由
	Category     string `json:"category"`     // 配料分类
	HealthImpact string `json:"healthImpact"` // 健康影响
}

// HealthAnalysis 健康度分析结果
type HealthAnalysis struct {
	OverallScore     int               `json:"overallScore"`
	IngredientScores []IngredientScore `json:"ingredientScores"`
	AnalysisReport   string            `json:"analysisReport"`
	Recommendations  string            `json:"recommendations"`
}

// 以下实现 driver.Valuer / sql.Scanner,
// 使结果类型可以直接映射到 jsonb/TEXT 列

// Value 实现 driver.Valuer
func (f FileInfo) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan 实现 sql.Scanner
func (f *FileInfo) Scan(value interface{}) error {
	return scanJSON(value, f)
}

// Value 实现 driver.Valuer
func (r OCRResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan 实现 sql.Scanner
func (r *OCRResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// Value 实现 driver.Valuer
func (h HealthAnalysis) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan 实现 sql.Scanner
func (h *HealthAnalysis) Scan(value interface{}) error {
	return scanJSON(value, h)
}

// scanJSON 将数据库返回的 jsonb/TEXT 值反序列化到目标结构
func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T for JSON scan", value)
	}
}
