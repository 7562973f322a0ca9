// Package scoring 基于规则的配料健康度评分引擎
// AI 服务不可用时的确定性降级方案:相同输入永远产生相同输出
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/zidanDirk/foodsafety/internal/model"
)

// rule 单条评分规则
// keywords 任一子串命中即应用该规则
type rule struct {
	keywords     []string
	score        int
	reason       string
	category     string
	healthImpact string
}

// 评分规则表,按声明顺序匹配,先命中者生效
var rules = []rule{
	{
		keywords:     []string{"小麦", "面粉", "燕麦"},
		score:        7,
		reason:       "提供碳水化合物和蛋白质,是主要的能量来源",
		category:     "主要成分",
		healthImpact: "对健康有益",
	},
	{
		keywords:     []string{"糖", "甜", "蜜"},
		score:        3,
		reason:       "高糖分,过量摄入可能导致肥胖和糖尿病风险",
		category:     "添加糖",
		healthImpact: "需要注意",
	},
	{
		keywords:     []string{"油", "脂"},
		score:        5,
		reason:       "提供必需脂肪酸,但需注意摄入量",
		category:     "油脂",
		healthImpact: "中性影响",
	},
	{
		keywords:     []string{"鸡蛋", "牛奶", "奶粉"},
		score:        8,
		reason:       "优质蛋白质来源,营养价值高",
		category:     "蛋白质",
		healthImpact: "对健康有益",
	},
	{
		keywords:     []string{"盐", "钠"},
		score:        4,
		reason:       "必需的调味料,但过量摄入对心血管不利",
		category:     "调味料",
		healthImpact: "需要注意",
	},
	{
		keywords:     []string{"防腐", "色素", "香精"},
		score:        3,
		reason:       "人工添加剂,建议适量摄入",
		category:     "添加剂",
		healthImpact: "需要注意",
	},
	{
		keywords:     []string{"维生素", "矿物质"},
		score:        8,
		reason:       "有益的营养强化成分",
		category:     "营养强化剂",
		healthImpact: "对健康有益",
	},
}

// NeutralScore 未命中任何规则时的中性评分
const NeutralScore = 5

// ScoreIngredient 对单个配料名称评分
func ScoreIngredient(name string) model.IngredientScore {
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, keyword := range r.keywords {
			if strings.Contains(lower, keyword) {
				return model.IngredientScore{
					Ingredient:   name,
					Score:        r.score,
					Reason:       r.reason,
					Category:     r.category,
					HealthImpact: r.healthImpact,
				}
			}
		}
	}
	return model.IngredientScore{
		Ingredient:   name,
		Score:        NeutralScore,
		Reason:       "一般的食品配料",
		Category:     "其他",
		HealthImpact: "中性影响",
	}
}

// Analyze 对配料列表生成完整的健康度分析
func Analyze(ingredients []model.Ingredient) model.HealthAnalysis {
	scores := make([]model.IngredientScore, 0, len(ingredients))
	for _, ingredient := range ingredients {
		scores = append(scores, ScoreIngredient(ingredient.Name))
	}

	overall := OverallScore(scores)

	return model.HealthAnalysis{
		OverallScore:     overall,
		IngredientScores: scores,
		AnalysisReport:   buildReport(scores, overall),
		Recommendations:  buildRecommendations(overall),
	}
}

// OverallScore 总评分 = 各配料评分均值四舍五入,并限制在 [1,10]
func OverallScore(scores []model.IngredientScore) int {
	if len(scores) == 0 {
		return NeutralScore
	}
	sum := 0
	for _, s := range scores {
		sum += s.Score
	}
	overall := int(math.Round(float64(sum) / float64(len(scores))))
	if overall < 1 {
		overall = 1
	}
	if overall > 10 {
		overall = 10
	}
	return overall
}

// buildReport 生成文字版分析报告
// 评分 >=7 的配料列为优点,<=4 的列为需要注意项
func buildReport(scores []model.IngredientScore, overall int) string {
	var strengths, cautions []string
	for _, s := range scores {
		if s.Score >= 7 {
			strengths = append(strengths, s.Ingredient)
		} else if s.Score <= 4 {
			cautions = append(cautions, s.Ingredient)
		}
	}

	healthLevel := "需要注意"
	if overall >= 8 {
		healthLevel = "较健康"
	} else if overall >= 6 {
		healthLevel = "中等健康"
	}

	strengthText := "无明显优点"
	if len(strengths) > 0 {
		strengthText = strings.Join(strengths, "、")
	}
	cautionText := "整体配料较为健康"
	if len(cautions) > 0 {
		cautionText = strings.Join(cautions, "、")
	}

	eatAdvice := "不建议"
	eatLevel := "偶尔"
	if overall >= 7 {
		eatAdvice = "可以"
		eatLevel = "健康"
	}

	return fmt.Sprintf(
		"本产品包含 %d 种配料。总体健康度评分为 %d/10 分,属于%s水平。\n\n"+
			"主要优点:%s等成分营养价值较高。\n\n"+
			"需要注意:%s等成分建议适量摄入。\n\n"+
			"建议:作为%s食用的食品,%s经常食用。",
		len(scores), overall, healthLevel, strengthText, cautionText, eatLevel, eatAdvice)
}

// buildRecommendations 生成固定模板的健康建议
func buildRecommendations(overall int) string {
	recommendations := []string{
		"1. 适量食用,避免过量摄入",
		"2. 搭配新鲜蔬果,增加营养价值",
		"3. 注意查看营养标签,了解具体含量",
	}
	if overall <= 5 {
		recommendations = append(recommendations, "4. 建议选择更健康的替代品")
	} else {
		recommendations = append(recommendations, "4. 可作为均衡饮食的一部分")
	}
	return strings.Join(recommendations, "\n")
}
