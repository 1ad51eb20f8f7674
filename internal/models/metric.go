package models

// Metric 遥测指标（封闭枚举，规则只能引用这四种）
type Metric string

const (
	MetricHeartRate   Metric = "hr"
	MetricSpO2        Metric = "spo2"
	MetricBodyTemp    Metric = "bodyTemp"
	MetricAmbientTemp Metric = "ambientTemp"
)

// Metrics 全部指标（固定顺序，供聚合器遍历）
var Metrics = []Metric{MetricHeartRate, MetricSpO2, MetricBodyTemp, MetricAmbientTemp}

// Valid 是否为已知指标
func (m Metric) Valid() bool {
	switch m {
	case MetricHeartRate, MetricSpO2, MetricBodyTemp, MetricAmbientTemp:
		return true
	}
	return false
}

// ValueOf 从测量记录中取出该指标的值（缺失返回 nil，与零值区分）
func (m Metric) ValueOf(meas *Measurement) *float64 {
	switch m {
	case MetricHeartRate:
		return meas.HR
	case MetricSpO2:
		return meas.SpO2
	case MetricBodyTemp:
		return meas.BodyTemp
	case MetricAmbientTemp:
		return meas.AmbientTemp
	}
	return nil
}
