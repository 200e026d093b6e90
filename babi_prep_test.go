package babi_prep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type TokenizeTest struct {
	Name     string
	Input    string
	Expected Sentence
}

type TokenizeTests []TokenizeTest

var tokenizeTests = TokenizeTests{
	{"punctuation isolated",
		"Mary went, to? the hall",
		Sentence{"mary", "went", ",", "to", "?", "the", "hall"}},
	{"trailing period",
		"Mary moved to the bathroom.",
		Sentence{"mary", "moved", "to", "the", "bathroom", "."}},
	{"question mark",
		"Where is Mary?",
		Sentence{"where", "is", "mary", "?"}},
	{"case folding",
		"JOHN Went BACK",
		Sentence{"john", "went", "back"}},
	{"empty input",
		"",
		Sentence{}},
	{"whitespace only",
		"   \t ",
		Sentence{}},
	{"digits and underscores are word characters",
		"room_3 has 2 doors!",
		Sentence{"room_3", "has", "2", "doors", "!"}},
	{"punctuation run collapses to one token",
		"really?! yes",
		Sentence{"really", "?!", "yes"}},
}

func TestTokenize(t *testing.T) {
	tokenizer := NewTokenizer()
	for _, test := range tokenizeTests {
		assert.Equal(t, test.Expected, tokenizer.Tokenize(test.Input),
			test.Name)
		assert.Equal(t, test.Expected, Tokenize(test.Input), test.Name)
	}
}

func TestTokenizeCached(t *testing.T) {
	tokenizer := NewTokenizer()
	first := tokenizer.Tokenize("Mary moved to the bathroom.")
	second := tokenizer.Tokenize("Mary moved to the bathroom.")
	assert.Equal(t, first, second)
	cached, ok := tokenizer.Cache.Get("Mary moved to the bathroom.")
	assert.True(t, ok)
	assert.Equal(t, first, cached.(Sentence))
}
