package similarity

import (
	"context"
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Jaccard 词集合重叠相似度
type Jaccard struct{}

// NewJaccard 创建 Jaccard 策略
func NewJaccard() *Jaccard {
	return &Jaccard{}
}

func (j *Jaccard) Name() string { return NameJaccard }

func (j *Jaccard) Reset() {}

// Similarity |A∩B| / |A∪B|，任一集合为空时返回0
func (j *Jaccard) Similarity(_ context.Context, a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
