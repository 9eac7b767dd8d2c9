package memory

import (
	"sort"
	"strings"

	"nft-sage-go/internal/model"
)

// keyword 是一个按词边界匹配的关键词。
// 以 "*" 结尾的关键词只要求词首边界，例如 "whale*" 可匹配 "whales"。
type keyword struct {
	text   string
	prefix bool
}

type topicMatcher struct {
	name    string
	needles []keyword
}

// Analyzer 对用户提问做纯查表的话题抽取与风险偏好打分，不涉及任何 NLP。
// 关键词按整词匹配，"eth" 不会命中 "method"，"moon" 不会命中 "moonbirds"。
type Analyzer struct {
	topics       []topicMatcher
	conservative []keyword
	aggressive   []keyword
}

// NewAnalyzer 根据话题词表与两组风险关键词构造分析器。
// topics 的键为话题名，值为匹配该话题的关键词；值为空时以话题名本身作为关键词。
func NewAnalyzer(topics map[string][]string, conservative, aggressive []string) *Analyzer {
	a := &Analyzer{
		conservative: normalizeWords(conservative),
		aggressive:   normalizeWords(aggressive),
	}
	for name, words := range topics {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		needles := normalizeWords(words)
		if len(needles) == 0 {
			needles = []keyword{{text: name}}
		}
		a.topics = append(a.topics, topicMatcher{name: name, needles: needles})
	}
	sort.Slice(a.topics, func(i, j int) bool { return a.topics[i].name < a.topics[j].name })
	return a
}

// Topics 返回提问中命中的话题，每个话题在一次提问中最多计一次。
func (a *Analyzer) Topics(query string) []string {
	lower := strings.ToLower(query)
	if lower == "" {
		return nil
	}
	var hits []string
	for _, t := range a.topics {
		for _, n := range t.needles {
			if n.in(lower) {
				hits = append(hits, t.name)
				break
			}
		}
	}
	return hits
}

// RiskSignals 统计提问中命中的保守型与激进型关键词个数。
func (a *Analyzer) RiskSignals(query string) (conservative, aggressive int) {
	lower := strings.ToLower(query)
	return countHits(lower, a.conservative), countHits(lower, a.aggressive)
}

// NextRisk 根据本轮信号计算新的风险偏好。
// 保守信号多则为 conservative，激进信号多则为 aggressive；
// 持平时保持原值，仅当原值仍为 unknown 时置为 moderate。
func NextRisk(current model.RiskTolerance, conservative, aggressive int) model.RiskTolerance {
	switch {
	case conservative > aggressive:
		return model.RiskConservative
	case aggressive > conservative:
		return model.RiskAggressive
	case current == model.RiskUnknown || current == "":
		return model.RiskModerate
	default:
		return current
	}
}

func countHits(lower string, words []keyword) int {
	n := 0
	for _, w := range words {
		if w.in(lower) {
			n++
		}
	}
	return n
}

// in 报告 lower 中是否存在满足词边界的匹配。
func (k keyword) in(lower string) bool {
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], k.text)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(k.text)
		if (start == 0 || !isWordByte(lower[start-1])) &&
			(k.prefix || end == len(lower) || !isWordByte(lower[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

// isWordByte 只把 ASCII 字母数字视为单词字符，中文等非 ASCII 字符都算作边界。
func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func normalizeWords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		text, prefix := strings.CutSuffix(w, "*")
		if text == "" {
			continue
		}
		out = append(out, keyword{text: text, prefix: prefix})
	}
	return out
}

// rankKeys 按次数降序排序，次数相同时最近出现的在前，最多返回 limit 个。
func rankKeys[K ~string](stats map[K]*model.CountStat, limit int) []K {
	keys := make([]K, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := stats[keys[i]], stats[keys[j]]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.LastSeen != b.LastSeen {
			return a.LastSeen > b.LastSeen
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
