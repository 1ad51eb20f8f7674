package evaluator

import "healthpulse/internal/models"

// IsBreached 阈值比较（纯数值比较，无容差）
func IsBreached(value float64, operator models.Operator, threshold float64) bool {
	switch operator {
	case models.OpLess:
		return value < threshold
	case models.OpLessEqual:
		return value <= threshold
	case models.OpGreater:
		return value > threshold
	case models.OpGreaterEqual:
		return value >= threshold
	default:
		return false
	}
}
