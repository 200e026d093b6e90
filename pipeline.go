package babi_prep

import (
	"fmt"
	"sort"
)

// TruncateStories bounds each example's story to its trailing maxLength
// sentences, dropping the oldest first. The bound differs per task; qa3
// narratives run much longer than the rest.
func TruncateStories(examples []Example, maxLength int) []Example {
	truncated := make([]Example, len(examples))
	for idx := range examples {
		example := examples[idx]
		if len(example.Story) > maxLength {
			example.Story = example.Story[len(example.Story)-maxLength:]
		}
		truncated[idx] = example
	}
	return truncated
}

// Vocab is the deterministic token→id mapping for one dataset. PadToken is
// always id 0; the remaining ids follow lexicographic token order, so two
// builds over the same token population assign identical ids.
type Vocab struct {
	Tokens []string
	IDs    map[string]TokenID
}

// BuildVocab collects every token appearing in any sentence, query, or
// answer of the given example sets. Callers must pass the train and test
// splits together: a per-split vocabulary would assign conflicting ids and
// silently corrupt the encoded data.
func BuildVocab(exampleSets ...[]Example) *Vocab {
	seen := make(map[string]struct{})
	for _, examples := range exampleSets {
		for idx := range examples {
			example := &examples[idx]
			for _, sentence := range example.Story {
				for _, token := range sentence {
					seen[token] = struct{}{}
				}
			}
			for _, token := range example.Query {
				seen[token] = struct{}{}
			}
			seen[example.Answer] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen)+1)
	tokens = append(tokens, PadToken)
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens[1:])
	ids := make(map[string]TokenID, len(tokens))
	for idx, token := range tokens {
		ids[token] = TokenID(idx)
	}
	return &Vocab{Tokens: tokens, IDs: ids}
}

func (v *Vocab) Size() int {
	return len(v.Tokens)
}

// ID resolves a token to its id. A miss means the vocabulary was not built
// over the same token population being encoded, which is a pipeline-ordering
// bug and must never be defaulted away.
func (v *Vocab) ID(token string) (TokenID, error) {
	id, ok := v.IDs[token]
	if !ok {
		return 0, fmt.Errorf("token %q missing from vocabulary", token)
	}
	return id, nil
}

// EncodeStories rewrites every token in every sentence, query, and answer as
// its vocabulary id.
func EncodeStories(examples []Example, vocab *Vocab) ([]EncodedExample, error) {
	encoded := make([]EncodedExample, 0, len(examples))
	for idx := range examples {
		example := &examples[idx]
		story := make([]TokenIDs, 0, len(example.Story))
		for _, sentence := range example.Story {
			ids, err := encodeSentence(sentence, vocab)
			if err != nil {
				return nil, err
			}
			story = append(story, ids)
		}
		query, err := encodeSentence(example.Query, vocab)
		if err != nil {
			return nil, err
		}
		answer, err := vocab.ID(example.Answer)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, EncodedExample{
			Story:  story,
			Query:  query,
			Answer: answer,
		})
	}
	return encoded, nil
}

func encodeSentence(sentence Sentence, vocab *Vocab) (TokenIDs, error) {
	ids := make(TokenIDs, 0, len(sentence))
	for _, token := range sentence {
		id, err := vocab.ID(token)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Maxima returns the longest sentence, story, and query observed across the
// given encoded sets. The padder applies these uniformly to every split, so
// they must be computed over the train+test union.
func Maxima(exampleSets ...[]EncodedExample) (maxSentence, maxStory, maxQuery int) {
	for _, examples := range exampleSets {
		for idx := range examples {
			example := &examples[idx]
			if len(example.Story) > maxStory {
				maxStory = len(example.Story)
			}
			for _, sentence := range example.Story {
				if len(sentence) > maxSentence {
					maxSentence = len(sentence)
				}
			}
			if len(example.Query) > maxQuery {
				maxQuery = len(example.Query)
			}
		}
	}
	return maxSentence, maxStory, maxQuery
}

// PadStories right-pads, in place, every sentence to maxSentence ids, every
// story to maxStory all-pad sentences, and every query to maxQuery ids,
// using PadID. The resulting shapes are verified for every example; a
// violation means the maxima were computed over the wrong population and
// aborts the run.
func PadStories(examples []EncodedExample, maxSentence, maxStory, maxQuery int) error {
	for idx := range examples {
		example := &examples[idx]
		for sentIdx := range example.Story {
			sentence := example.Story[sentIdx]
			if len(sentence) > maxSentence {
				return fmt.Errorf(
					"example %d: sentence of %d ids exceeds target %d",
					idx, len(sentence), maxSentence)
			}
			for len(sentence) < maxSentence {
				sentence = append(sentence, PadID)
			}
			example.Story[sentIdx] = sentence
		}
		if len(example.Story) > maxStory {
			return fmt.Errorf(
				"example %d: story of %d sentences exceeds target %d",
				idx, len(example.Story), maxStory)
		}
		for len(example.Story) < maxStory {
			example.Story = append(example.Story, make(TokenIDs, maxSentence))
		}
		if len(example.Query) > maxQuery {
			return fmt.Errorf(
				"example %d: query of %d ids exceeds target %d",
				idx, len(example.Query), maxQuery)
		}
		for len(example.Query) < maxQuery {
			example.Query = append(example.Query, PadID)
		}
		if err := checkShape(example, idx, maxSentence, maxStory, maxQuery); err != nil {
			return err
		}
	}
	return nil
}

func checkShape(example *EncodedExample, idx, maxSentence, maxStory, maxQuery int) error {
	if len(example.Story) != maxStory {
		return fmt.Errorf("example %d: padded story has %d sentences, want %d",
			idx, len(example.Story), maxStory)
	}
	for sentIdx := range example.Story {
		if len(example.Story[sentIdx]) != maxSentence {
			return fmt.Errorf(
				"example %d: padded sentence %d has %d ids, want %d",
				idx, sentIdx, len(example.Story[sentIdx]), maxSentence)
		}
	}
	if len(example.Query) != maxQuery {
		return fmt.Errorf("example %d: padded query has %d ids, want %d",
			idx, len(example.Query), maxQuery)
	}
	return nil
}
