package babi_prep

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yargevad/filepathx"
	"gorgonia.org/tensor"
)

// Task describes one entry in the fixed bAbI catalog.
type Task struct {
	ID    string
	Name  string
	Title string
}

var taskCatalog = []Task{
	{"qa1", "qa1_single-supporting-fact", "Task 1: Single Supporting Fact"},
	{"qa2", "qa2_two-supporting-facts", "Task 2: Two Supporting Facts"},
	{"qa3", "qa3_three-supporting-facts", "Task 3: Three Supporting Facts"},
	{"qa4", "qa4_two-arg-relations", "Task 4: Two Argument Relations"},
	{"qa5", "qa5_three-arg-relations", "Task 5: Three Argument Relations"},
	{"qa6", "qa6_yes-no-questions", "Task 6: Yes/No Questions"},
	{"qa7", "qa7_counting", "Task 7: Counting"},
	{"qa8", "qa8_lists-sets", "Task 8: Lists/Sets"},
	{"qa9", "qa9_simple-negation", "Task 9: Simple Negation"},
	{"qa10", "qa10_indefinite-knowledge", "Task 10: Indefinite Knowledge"},
	{"qa11", "qa11_basic-coreference", "Task 11: Basic Coreference"},
	{"qa12", "qa12_conjunction", "Task 12: Conjunction"},
	{"qa13", "qa13_compound-coreference", "Task 13: Compound Coreference"},
	{"qa14", "qa14_time-reasoning", "Task 14: Time Reasoning"},
	{"qa15", "qa15_basic-deduction", "Task 15: Basic Deduction"},
	{"qa16", "qa16_basic-induction", "Task 16: Basic Induction"},
	{"qa17", "qa17_positional-reasoning", "Task 17: Positional Reasoning"},
	{"qa18", "qa18_size-reasoning", "Task 18: Size Reasoning"},
	{"qa19", "qa19_path-finding", "Task 19: Path Finding"},
	{"qa20", "qa20_agents-motivations", "Task 20: Agent Motivations"},
}

// Tasks returns the qa1..qa20 catalog in order.
func Tasks() []Task {
	tasks := make([]Task, len(taskCatalog))
	copy(tasks, taskCatalog)
	return tasks
}

// TaskByID resolves a task identifier; unknown identifiers are an
// input-format error.
func TaskByID(id string) (Task, error) {
	for _, task := range taskCatalog {
		if task.ID == id {
			return task, nil
		}
	}
	return Task{}, fmt.Errorf("unknown task id %q, want qa1..qa20", id)
}

// qa3 narratives are inherently longer, so it gets a larger window.
func truncationBound(taskID string) int {
	if taskID == "qa3" {
		return 130
	}
	return 70
}

// archiveRoot is the directory the bAbI release tarball unpacks to.
const archiveRoot = "tasks_1-20_v1-2"

// Source locates the raw text of one split file by its archive-relative
// path, e.g. "tasks_1-20_v1-2/en-10k/qa7_counting_train.txt".
type Source interface {
	Split(relPath string) ([]byte, error)
}

// TarSource reads split files straight out of the gzipped bAbI release
// archive, the way the upstream distribution ships it.
type TarSource struct {
	Path string
}

func (s TarSource) Split(relPath string) ([]byte, error) {
	archive, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	defer gz.Close()
	reader := tar.NewReader(gz)
	for {
		header, nextErr := reader.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			return nil, fmt.Errorf("%s: %w", s.Path, nextErr)
		}
		name := strings.TrimPrefix(header.Name, "./")
		if name == relPath || strings.HasSuffix(name, "/"+relPath) {
			return io.ReadAll(reader)
		}
	}
	return nil, fmt.Errorf("%s: no member %s", s.Path, relPath)
}

// DirSource reads split files from an extracted archive tree. The recursive
// glob tolerates any extraction root above the tasks directory.
type DirSource struct {
	Path string
}

func (s DirSource) Split(relPath string) ([]byte, error) {
	direct := filepath.Join(s.Path, filepath.FromSlash(relPath))
	if _, err := os.Stat(direct); err == nil {
		return os.ReadFile(direct)
	}
	matches, err := filepathx.Glob(s.Path + "/**/" + path.Base(relPath))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%s: no file %s", s.Path, path.Base(relPath))
	}
	return os.ReadFile(matches[0])
}

// Options configures a Prepare run.
type Options struct {
	// Only1K selects the 1k-example "en" variant instead of "en-10k".
	Only1K bool
	// OnlySupporting keeps only each question's supporting sentences.
	OnlySupporting bool
}

// Params is the shape metadata a downstream consumer needs to interpret the
// flattened story field of the record files.
type Params struct {
	MaxSentenceLength int `json:"max_sentence_length"`
	StoryMaxLen       int `json:"story_maxlen"`
	QueryMaxLen       int `json:"query_maxlen"`
	VocabSize         int `json:"vocab_size"`
}

// Dataset is the fully padded output of one Prepare run.
type Dataset struct {
	Task   Task
	Train  []EncodedExample
	Test   []EncodedExample
	Vocab  *Vocab
	Params Params
}

func splitPaths(task Task, only1K bool) (train, test string) {
	variant := "en-10k"
	if only1K {
		variant = "en"
	}
	dir := path.Join(archiveRoot, variant)
	return path.Join(dir, task.Name+"_train.txt"),
		path.Join(dir, task.Name+"_test.txt")
}

// Prepare runs the whole pipeline for one task: parse both splits, truncate
// with the task's bound, build one vocabulary shared by both splits, encode,
// compute the three global maxima over the union, and pad both splits to
// them. Nothing is written to disk; serialization is the records package's
// job.
func Prepare(src Source, taskID string, opts Options) (*Dataset, error) {
	task, err := TaskByID(taskID)
	if err != nil {
		return nil, err
	}
	trainPath, testPath := splitPaths(task, opts.Only1K)
	train, err := parseSplit(src, trainPath, opts.OnlySupporting)
	if err != nil {
		return nil, err
	}
	test, err := parseSplit(src, testPath, opts.OnlySupporting)
	if err != nil {
		return nil, err
	}

	bound := truncationBound(task.ID)
	train = TruncateStories(train, bound)
	test = TruncateStories(test, bound)

	vocab := BuildVocab(train, test)

	trainIDs, err := EncodeStories(train, vocab)
	if err != nil {
		return nil, err
	}
	testIDs, err := EncodeStories(test, vocab)
	if err != nil {
		return nil, err
	}

	maxSentence, maxStory, maxQuery := Maxima(trainIDs, testIDs)
	if err := PadStories(trainIDs, maxSentence, maxStory, maxQuery); err != nil {
		return nil, err
	}
	if err := PadStories(testIDs, maxSentence, maxStory, maxQuery); err != nil {
		return nil, err
	}

	return &Dataset{
		Task:  task,
		Train: trainIDs,
		Test:  testIDs,
		Vocab: vocab,
		Params: Params{
			MaxSentenceLength: maxSentence,
			StoryMaxLen:       maxStory,
			QueryMaxLen:       maxQuery,
			VocabSize:         vocab.Size(),
		},
	}, nil
}

func parseSplit(src Source, relPath string, onlySupporting bool) ([]Example, error) {
	raw, err := src.Split(relPath)
	if err != nil {
		return nil, err
	}
	examples, err := ParseStories(bytes.NewReader(raw), onlySupporting)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", relPath, err)
	}
	return examples, nil
}

// Split holds one split's dense tensors: Story is (n, story, sentence),
// Query is (n, query), Answer is (n), all int64-backed.
type Split struct {
	Story  *tensor.Dense
	Query  *tensor.Dense
	Answer *tensor.Dense
}

// Dense trims each split down to the nearest lower multiple of batchSize,
// dropping the remainder examples, and materializes dense tensors. Relative
// example order is preserved. This is a convenience for training loops that
// want rectangular batches, not a correctness-bearing step.
func (d *Dataset) Dense(batchSize int) (train, test *Split, err error) {
	if batchSize <= 0 {
		return nil, nil, fmt.Errorf("batch size must be positive, got %d",
			batchSize)
	}
	if train, err = denseSplit(d.Train, d.Params, batchSize); err != nil {
		return nil, nil, fmt.Errorf("train split: %w", err)
	}
	if test, err = denseSplit(d.Test, d.Params, batchSize); err != nil {
		return nil, nil, fmt.Errorf("test split: %w", err)
	}
	return train, test, nil
}

func denseSplit(examples []EncodedExample, params Params, batchSize int) (*Split, error) {
	n := len(examples) - len(examples)%batchSize
	if n == 0 {
		return nil, fmt.Errorf(
			"%d examples yield no full batch of %d", len(examples), batchSize)
	}
	storyBacking := make([]int64, 0,
		n*params.StoryMaxLen*params.MaxSentenceLength)
	queryBacking := make([]int64, 0, n*params.QueryMaxLen)
	answerBacking := make([]int64, 0, n)
	for idx := 0; idx < n; idx++ {
		example := &examples[idx]
		for _, sentence := range example.Story {
			for _, id := range sentence {
				storyBacking = append(storyBacking, int64(id))
			}
		}
		for _, id := range example.Query {
			queryBacking = append(queryBacking, int64(id))
		}
		answerBacking = append(answerBacking, int64(example.Answer))
	}
	wantStory := n * params.StoryMaxLen * params.MaxSentenceLength
	if len(storyBacking) != wantStory {
		return nil, fmt.Errorf("dense story backing has %d ids, want %d; "+
			"examples were not padded", len(storyBacking), wantStory)
	}
	return &Split{
		Story: tensor.New(
			tensor.WithShape(n, params.StoryMaxLen, params.MaxSentenceLength),
			tensor.WithBacking(storyBacking)),
		Query: tensor.New(
			tensor.WithShape(n, params.QueryMaxLen),
			tensor.WithBacking(queryBacking)),
		Answer: tensor.New(
			tensor.WithShape(n),
			tensor.WithBacking(answerBacking)),
	}, nil
}
