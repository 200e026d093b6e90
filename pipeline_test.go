package babi_prep

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func parseFixture(t *testing.T, input string) []Example {
	examples, err := ParseStories(strings.NewReader(input), false)
	assert.NoError(t, err)
	return examples
}

const vocabFixture = "1 Mary moved to the bathroom.\n" +
	"2 John went to the hallway.\n" +
	"3 Where is Mary?\tbathroom\t1\n"

func TestBuildVocabDeterministic(t *testing.T) {
	examples := parseFixture(t, vocabFixture)
	first := BuildVocab(examples)
	second := BuildVocab(examples)
	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Equal(t, first.IDs, second.IDs)

	assert.Equal(t, PadToken, first.Tokens[0])
	assert.Equal(t, PadID, first.IDs[PadToken])

	// One id per unique token, plus the pad slot.
	unique := make(map[string]struct{})
	for _, example := range examples {
		for _, sentence := range example.Story {
			for _, token := range sentence {
				unique[token] = struct{}{}
			}
		}
		for _, token := range example.Query {
			unique[token] = struct{}{}
		}
		unique[example.Answer] = struct{}{}
	}
	assert.Equal(t, len(unique)+1, first.Size())

	// Ids are unique integers in [1, size-1] and follow lexicographic order.
	seen := make(map[TokenID]string)
	for token, id := range first.IDs {
		if token == PadToken {
			continue
		}
		assert.GreaterOrEqual(t, int(id), 1)
		assert.Less(t, int(id), first.Size())
		prev, dup := seen[id]
		assert.False(t, dup, "id %d assigned to both %q and %q",
			id, prev, token)
		seen[id] = token
	}
	for idx := 2; idx < first.Size(); idx++ {
		assert.Less(t, first.Tokens[idx-1], first.Tokens[idx])
	}
}

func TestVocabSharedAcrossSplits(t *testing.T) {
	train := parseFixture(t, vocabFixture)
	test := parseFixture(t,
		"1 Sandra journeyed to the garden.\n"+
			"2 Where is Sandra?\tgarden\t1\n")
	vocab := BuildVocab(train, test)
	// Tokens that appear in only one split still resolve.
	_, err := vocab.ID("garden")
	assert.NoError(t, err)
	_, err = vocab.ID("hallway")
	assert.NoError(t, err)
}

func TestEncodeStories(t *testing.T) {
	examples := parseFixture(t, vocabFixture)
	vocab := BuildVocab(examples)
	encoded, err := EncodeStories(examples, vocab)
	assert.NoError(t, err)
	assert.Len(t, encoded, 1)
	assert.Equal(t, vocab.IDs["bathroom"], encoded[0].Answer)
	assert.Equal(t, vocab.IDs["mary"], encoded[0].Story[0][0])
	assert.Equal(t, vocab.IDs["?"], encoded[0].Query[3])
	for _, sentence := range encoded[0].Story {
		for _, id := range sentence {
			assert.NotEqual(t, PadID, id)
		}
	}
}

func TestEncodeStoriesMissingToken(t *testing.T) {
	examples := parseFixture(t, vocabFixture)
	vocab := BuildVocab(examples)
	stranger := parseFixture(t,
		"1 Wolves are afraid of mice.\n"+
			"2 What are wolves afraid of?\tmice\t1\n")
	_, err := EncodeStories(stranger, vocab)
	assert.ErrorContains(t, err, "missing from vocabulary")
}

func TestTruncateStories(t *testing.T) {
	story := make([]Sentence, 200)
	for idx := range story {
		story[idx] = Sentence{fmt.Sprintf("s%d", idx)}
	}
	examples := []Example{{
		Story:  story,
		Query:  Sentence{"where"},
		Answer: "s0",
	}}
	truncated := TruncateStories(examples, 70)
	assert.Len(t, truncated[0].Story, 70)
	assert.Equal(t, Sentence{"s130"}, truncated[0].Story[0])
	assert.Equal(t, Sentence{"s199"}, truncated[0].Story[69])
	// Shorter stories pass through untouched.
	short := TruncateStories(examples, 500)
	assert.Len(t, short[0].Story, 200)
}

func TestMaxima(t *testing.T) {
	first := []EncodedExample{{
		Story: []TokenIDs{{1, 2, 3}, {4}},
		Query: TokenIDs{5, 6},
	}}
	second := []EncodedExample{{
		Story: []TokenIDs{{1}, {2}, {3}},
		Query: TokenIDs{4, 5, 6, 7},
	}}
	maxSentence, maxStory, maxQuery := Maxima(first, second)
	assert.Equal(t, 3, maxSentence)
	assert.Equal(t, 3, maxStory)
	assert.Equal(t, 4, maxQuery)
}

func TestPadStories(t *testing.T) {
	examples := []EncodedExample{
		{
			Story:  []TokenIDs{{1, 2}, {3}},
			Query:  TokenIDs{4},
			Answer: 5,
		},
		{
			Story:  []TokenIDs{{6, 7, 8}},
			Query:  TokenIDs{9, 10},
			Answer: 11,
		},
	}
	maxSentence, maxStory, maxQuery := Maxima(examples)
	err := PadStories(examples, maxSentence, maxStory, maxQuery)
	assert.NoError(t, err)
	for _, example := range examples {
		assert.Len(t, example.Story, maxStory)
		for _, sentence := range example.Story {
			assert.Len(t, sentence, maxSentence)
		}
		assert.Len(t, example.Query, maxQuery)
	}
	// Appended positions hold the pad id.
	assert.Equal(t, TokenIDs{1, 2, PadID}, examples[0].Story[0])
	assert.Equal(t, TokenIDs{3, PadID, PadID}, examples[0].Story[1])
	assert.Equal(t, TokenIDs{4, PadID}, examples[0].Query)
	assert.Equal(t, TokenIDs{PadID, PadID, PadID}, examples[1].Story[1])
}

func TestPadStoriesShapeViolation(t *testing.T) {
	examples := []EncodedExample{{
		Story: []TokenIDs{{1, 2, 3}},
		Query: TokenIDs{4, 5},
	}}
	assert.Error(t, PadStories(examples, 2, 1, 2))
	assert.Error(t, PadStories(examples, 3, 0, 2))
	assert.Error(t, PadStories(examples, 3, 1, 1))
}
