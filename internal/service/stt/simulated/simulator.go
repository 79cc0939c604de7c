// Package simulated provides a stand-in recognizer used when no engine is
// loaded for a language. It returns the reference text most of the time and a
// typical mispronunciation otherwise, so diagnostics can be exercised without
// a real model.
package simulated

import (
	"math/rand/v2"
	"sync"
)

// DefaultAccuracy is the probability of returning the reference verbatim.
const DefaultAccuracy = 0.8

// Rand is the randomness source. *rand.Rand satisfies it; tests inject stubs.
type Rand interface {
	Float64() float64
}

// Mispronunciations maps a reference phrase to a common mispronounced form,
// per language.
var Mispronunciations = map[string]map[string]string{
	"zh-CN": {
		"啊": "阿", "喔": "我", "鹅": "额", "衣": "一", "乌": "无",
		"爸爸": "叭叭", "妈妈": "麻麻", "水": "谁", "饭": "反", "车": "撤",
		"你好": "你号", "谢谢": "些些", "再见": "在见", "请坐": "请做", "对不起": "对不齐",
	},
	"en-US": {
		"hello": "hallo", "world": "word", "water": "vater",
		"thank you": "sank you", "goodbye": "good by", "please": "pleas",
		"sorry": "sory", "excuse me": "excuse mi", "how are you": "how are u",
	},
}

// Simulator produces hypotheses from the reference text.
type Simulator struct {
	mu       sync.Mutex
	rnd      Rand
	accuracy float64
}

// New creates a simulator seeded with seed. A zero seed draws a random one.
func New(accuracy float64, seed uint64) *Simulator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return NewWithRand(accuracy, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewWithRand creates a simulator drawing from r.
func NewWithRand(accuracy float64, r Rand) *Simulator {
	if accuracy < 0 || accuracy > 1 {
		accuracy = DefaultAccuracy
	}
	return &Simulator{rnd: r, accuracy: accuracy}
}

// Recognize returns reference with probability accuracy. Otherwise it returns
// the table's mispronunciation for reference, or reference followed by "?".
// Languages other than zh-CN use the en-US table.
func (s *Simulator) Recognize(reference, language string) string {
	s.mu.Lock()
	p := s.rnd.Float64()
	s.mu.Unlock()

	if p < s.accuracy {
		return reference
	}

	table := Mispronunciations["en-US"]
	if language == "zh-CN" {
		table = Mispronunciations["zh-CN"]
	}
	if wrong, ok := table[reference]; ok {
		return wrong
	}
	return reference + "?"
}
