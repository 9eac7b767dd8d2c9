package model

// IntentType 是用户问题的分析类别。
type IntentType string

const (
	IntentWalletAnalysis     IntentType = "wallet_analysis"
	IntentCollectionAnalysis IntentType = "collection_analysis"
	IntentMarketInsights     IntentType = "market_insights"
	IntentRiskAssessment     IntentType = "risk_assessment"
	IntentGeneralQuestion    IntentType = "general_question"
)

// IntentTypes 列出全部已知的意图类别。
var IntentTypes = []IntentType{
	IntentWalletAnalysis,
	IntentCollectionAnalysis,
	IntentMarketInsights,
	IntentRiskAssessment,
	IntentGeneralQuestion,
}

// Valid 判断是否为已知类别。
func (t IntentType) Valid() bool {
	for _, known := range IntentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// 常用实体键。
const (
	EntityWalletAddress = "wallet_address"
	EntityENSName       = "ens_name"
	EntityCollection    = "collection"
	EntityChain         = "chain"
)

// Intent 是意图分类结果，与产生它的分类器实现无关。
type Intent struct {
	Type       IntentType     `json:"type"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
}

// Valid 判断意图是否可被统计：类别已知且置信度在 [0,1] 内。
func (i *Intent) Valid() bool {
	if i == nil {
		return false
	}
	return i.Type.Valid() && i.Confidence >= 0 && i.Confidence <= 1
}

// EntityString 读取字符串类型的实体，不存在或类型不符时返回空串。
func (i *Intent) EntityString(name string) string {
	if i == nil || i.Entities == nil {
		return ""
	}
	s, _ := i.Entities[name].(string)
	return s
}
