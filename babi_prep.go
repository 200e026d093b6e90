// Package babi_prep turns the bAbI question-answering corpus into padded
// integer tensors and length-delimited binary record files suitable for
// training pipelines. The processing is a single forward pass: tokenize,
// parse, truncate, build one shared vocabulary, encode, pad, serialize.
package babi_prep

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

const (
	// PadToken is the reserved filler token. It always occupies id 0, so a
	// zero id never collides with a real token.
	PadToken = "_PAD"
	PadID    = TokenID(0)
)

const TOKENIZER_LRU_SZ = 4096

// SPLIT_REGEX alternates runs of word characters with runs of everything
// else, so punctuation survives as tokens instead of vanishing as
// delimiters.
const SPLIT_REGEX = "\\w+|\\W+"

// TokenID is a vocabulary index. Record files store these as 64-bit
// little-endian integers.
type TokenID int64
type TokenIDs []TokenID

// Sentence is one tokenized narrative line or question.
type Sentence []string

// Example is a (story, question, answer) triple in token form. Answer holds
// the raw answer field and is never tokenized; list-task answers like
// "milk,football" enter the vocabulary as a single token.
type Example struct {
	Story  []Sentence
	Query  Sentence
	Answer string
}

// EncodedExample mirrors Example with every token replaced by its
// vocabulary id.
type EncodedExample struct {
	Story  []TokenIDs
	Query  TokenIDs
	Answer TokenID
}

// Tokenizer splits raw text into normalized word and punctuation tokens.
// bAbI narratives repeat sentences constantly, so tokenized lines are
// memoized in an ARC cache.
type Tokenizer struct {
	pattern *regexp.Regexp
	Cache   *lru.ARCCache
}

func NewTokenizer() *Tokenizer {
	cache, _ := lru.NewARC(TOKENIZER_LRU_SZ)
	return &Tokenizer{
		pattern: splitPattern,
		Cache:   cache,
	}
}

// Tokenize breaks text on runs of non-word characters, lowercases each
// fragment, and drops fragments that strip to nothing. Punctuation runs are
// yielded as their own tokens. An empty input yields an empty sentence.
func (t *Tokenizer) Tokenize(text string) Sentence {
	if cached, ok := t.Cache.Get(text); ok {
		return cached.(Sentence)
	}
	tokens := splitTokens(t.pattern, text)
	t.Cache.Add(text, tokens)
	return tokens
}

// Tokenize is the uncached convenience for one-off calls.
func Tokenize(text string) Sentence {
	return splitTokens(splitPattern, text)
}

var splitPattern = regexp.MustCompile(SPLIT_REGEX)

func splitTokens(pattern *regexp.Regexp, text string) Sentence {
	fragments := pattern.FindAllString(text, -1)
	tokens := make(Sentence, 0, len(fragments))
	for idx := range fragments {
		token := strings.TrimSpace(fragments[idx])
		if token == "" {
			continue
		}
		tokens = append(tokens, strings.ToLower(token))
	}
	return tokens
}
