package similarity

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// 至少两个字符的词
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

const defaultMaxFeatures = 5000

// TFIDF 每次调用只在两段输入上拟合词表的 TF-IDF 余弦相似度
// 使用一元与二元词组、英文停用词、平滑IDF与L2归一化
type TFIDF struct {
	maxFeatures int
}

// NewTFIDF 创建 TF-IDF 策略，maxFeatures <= 0 时使用默认值5000
func NewTFIDF(maxFeatures int) *TFIDF {
	if maxFeatures <= 0 {
		maxFeatures = defaultMaxFeatures
	}
	return &TFIDF{maxFeatures: maxFeatures}
}

func (t *TFIDF) Name() string { return NameTFIDF }

func (t *TFIDF) Reset() {}

// Similarity 计算两段文本的 TF-IDF 余弦相似度
func (t *TFIDF) Similarity(_ context.Context, a, b string) float64 {
	docs := [2]map[string]int{analyze(a), analyze(b)}
	if len(docs[0]) == 0 || len(docs[1]) == 0 {
		return 0
	}

	vocab := t.vocabulary(docs[:])
	if len(vocab) == 0 {
		return 0
	}

	const n = 2.0
	vectors := [2]map[string]float64{{}, {}}
	for term := range vocab {
		df := 0.0
		for _, d := range docs {
			if d[term] > 0 {
				df++
			}
		}
		idf := math.Log((1+n)/(1+df)) + 1
		for i, d := range docs {
			if tf := d[term]; tf > 0 {
				vectors[i][term] = float64(tf) * idf
			}
		}
	}

	normalize(vectors[0])
	normalize(vectors[1])

	var dot float64
	for term, w := range vectors[0] {
		dot += w * vectors[1][term]
	}
	return clamp01(dot)
}

// vocabulary 汇总两份文档的词项，超过上限时按总词频保留
func (t *TFIDF) vocabulary(docs []map[string]int) map[string]struct{} {
	totals := make(map[string]int)
	for _, d := range docs {
		for term, c := range d {
			totals[term] += c
		}
	}

	vocab := make(map[string]struct{}, len(totals))
	if len(totals) <= t.maxFeatures {
		for term := range totals {
			vocab[term] = struct{}{}
		}
		return vocab
	}

	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if totals[terms[i]] != totals[terms[j]] {
			return totals[terms[i]] > totals[terms[j]]
		}
		return terms[i] < terms[j]
	})
	for _, term := range terms[:t.maxFeatures] {
		vocab[term] = struct{}{}
	}
	return vocab
}

// analyze 分词、去停用词并生成一元与二元词组的词频
func analyze(text string) map[string]int {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
	}

	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}
	return counts
}

func normalize(v map[string]float64) {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for term, w := range v {
		v[term] = w / norm
	}
}
