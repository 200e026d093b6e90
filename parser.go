package babi_prep

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseStories consumes the bAbI task format: lines of `<int> <text>`, where
// a tab marks a question line carrying tab-separated question, answer, and
// 1-based supporting-fact indices. The line numbering restarts at 1 whenever
// a new story begins, which clears the sentence accumulator. When
// onlySupporting is set, each emitted story keeps only the sentences named
// by its question's supporting-fact indices; otherwise it keeps the full
// non-empty sentence history.
//
// After each question an empty sentinel sentence is appended to the history,
// so supporting-fact indices on later questions in the same story stay
// aligned with the original line numbering. Full-story output filters the
// sentinels back out.
func ParseStories(r io.Reader, onlySupporting bool) ([]Example, error) {
	tokenizer := NewTokenizer()
	examples := make([]Example, 0, 1024)
	story := make([]Sentence, 0, 32)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		prefix, rest, found := strings.Cut(line, " ")
		if !found {
			return nil, fmt.Errorf(
				"line %d: missing line-number prefix: %q", lineNo, line)
		}
		nid, convErr := strconv.Atoi(prefix)
		if convErr != nil {
			return nil, fmt.Errorf(
				"line %d: bad line number %q: %w", lineNo, prefix, convErr)
		}
		if nid == 1 {
			story = story[:0]
		}
		if !strings.Contains(rest, "\t") {
			story = append(story, tokenizer.Tokenize(rest))
			continue
		}
		fields := strings.Split(rest, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf(
				"line %d: question line wants 3 tab fields, got %d",
				lineNo, len(fields))
		}
		query := tokenizer.Tokenize(fields[0])
		answer := fields[1]
		var substory []Sentence
		if onlySupporting {
			selected, supErr := supportingSentences(story, fields[2])
			if supErr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, supErr)
			}
			substory = selected
		} else {
			substory = make([]Sentence, 0, len(story))
			for idx := range story {
				if len(story[idx]) > 0 {
					substory = append(substory, story[idx])
				}
			}
		}
		examples = append(examples, Example{
			Story:  substory,
			Query:  query,
			Answer: answer,
		})
		// Sentinel marking the question's position in the history.
		story = append(story, Sentence{})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return examples, nil
}

func supportingSentences(story []Sentence, field string) ([]Sentence, error) {
	refs := strings.Fields(field)
	if len(refs) == 0 {
		return nil, fmt.Errorf("question line has no supporting-fact indices")
	}
	selected := make([]Sentence, 0, len(refs))
	for _, ref := range refs {
		idx, err := strconv.Atoi(ref)
		if err != nil {
			return nil, fmt.Errorf("bad supporting-fact index %q: %w",
				ref, err)
		}
		if idx < 1 || idx > len(story) {
			return nil, fmt.Errorf(
				"supporting-fact index %d outside story of %d sentences",
				idx, len(story))
		}
		selected = append(selected, story[idx-1])
	}
	return selected, nil
}
