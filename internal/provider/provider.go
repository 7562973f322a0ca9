// Package provider 外部服务适配器
// 封装 OCR 与 AI 两个外部提供方,各自实现三级降级策略:
//  1. 未配置凭据时跳过网络调用,直接返回确定性降级输出
//  2. 调用失败（非 2xx、超时、响应畸形）时记录原因并返回同样的降级输出
//  3. 响应可部分解析时尽量挽救,缺失条目用中性默认值补齐
//
// 适配器永远向上游返回结构完整的结果对象,唯一的错误出口是上下文取消/超时。
package provider

import (
	"context"

	"github.com/zidanDirk/foodsafety/internal/model"
)

// OCRProvider 文字识别服务契约
type OCRProvider interface {
	// ProcessImage 从图片中提取文本并解析配料列表
	ProcessImage(ctx context.Context, image []byte) (*model.OCRResult, error)
}

// AIProvider 健康度分析服务契约
type AIProvider interface {
	// AnalyzeIngredients 对配料列表生成健康度分析
	AnalyzeIngredients(ctx context.Context, ingredients []model.Ingredient) (*model.HealthAnalysis, error)
}
