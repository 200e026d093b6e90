package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uiprogress"
	"github.com/joho/godotenv"
	babi "github.com/qadata/babi_prep"
	"github.com/qadata/babi_prep/records"
)

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	sourcePath := flag.String("input", envDefault("BABI_SOURCE", ""),
		"path to the bAbI tasks_1-20_v1-2.tar.gz archive")
	sourceDir := flag.String("input_dir", "",
		"path to an extracted bAbI archive tree, alternative to -input")
	taskID := flag.String("task", "qa1",
		"task to process [qa1..qa20, all]")
	outputDir := flag.String("output_dir", envDefault("BABI_OUTPUT_DIR", "."),
		"directory for record and metadata files")
	only1K := flag.Bool("only_1k", false,
		"use the 1k-example variant instead of 10k")
	onlySupporting := flag.Bool("only_supporting", false,
		"keep only each question's supporting sentences")
	batchSize := flag.Int("batch_size", 32,
		"batch size for the dense-tensor trim report, 0 to skip")
	flag.Parse()

	var src babi.Source
	switch {
	case *sourcePath != "" && *sourceDir != "":
		log.Fatal("-input and -input_dir are mutually exclusive")
	case *sourcePath != "":
		src = babi.TarSource{Path: *sourcePath}
	case *sourceDir != "":
		src = babi.DirSource{Path: *sourceDir}
	default:
		flag.Usage()
		log.Fatal("Must provide -input or -input_dir for the dataset source")
	}

	var tasks []babi.Task
	if *taskID == "all" {
		tasks = babi.Tasks()
	} else {
		task, err := babi.TaskByID(*taskID)
		if err != nil {
			log.Fatal(err)
		}
		tasks = []babi.Task{task}
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatal(err)
	}

	opts := babi.Options{
		Only1K:         *only1K,
		OnlySupporting: *onlySupporting,
	}

	var bar *uiprogress.Bar
	if len(tasks) > 1 {
		uiprogress.Start()
		bar = uiprogress.AddBar(len(tasks))
		bar.AppendCompleted()
		bar.PrependElapsed()
	}
	for _, task := range tasks {
		if err := processTask(src, task, opts, *outputDir,
			*batchSize); err != nil {
			if bar != nil {
				uiprogress.Stop()
			}
			log.Fatal(err)
		}
		if bar != nil {
			bar.Incr()
		}
	}
	if bar != nil {
		uiprogress.Stop()
	}
}

func processTask(src babi.Source, task babi.Task, opts babi.Options,
	outputDir string, batchSize int) error {
	log.Printf("Preparing %s (%s)", task.ID, task.Title)
	dataset, err := babi.Prepare(src, task.ID, opts)
	if err != nil {
		return err
	}
	log.Printf("%s: %d train / %d test examples, vocab %d, "+
		"story %dx%d, query %d",
		task.ID, len(dataset.Train), len(dataset.Test),
		dataset.Params.VocabSize, dataset.Params.StoryMaxLen,
		dataset.Params.MaxSentenceLength, dataset.Params.QueryMaxLen)

	trainPath := filepath.Join(outputDir, task.ID+"_train.records")
	testPath := filepath.Join(outputDir, task.ID+"_test.records")

	// Write both splits to temp names and rename only after both succeed,
	// so a failure never leaves a train file without its test pair.
	trainBytes, err := records.WriteFile(trainPath+".tmp", dataset.Train)
	if err != nil {
		os.Remove(trainPath + ".tmp")
		return err
	}
	testBytes, err := records.WriteFile(testPath+".tmp", dataset.Test)
	if err != nil {
		os.Remove(trainPath + ".tmp")
		os.Remove(testPath + ".tmp")
		return err
	}
	if err := os.Rename(trainPath+".tmp", trainPath); err != nil {
		return err
	}
	if err := os.Rename(testPath+".tmp", testPath); err != nil {
		return err
	}
	log.Printf("%s: wrote %s (%s) and %s (%s)", task.ID,
		trainPath, humanize.Bytes(uint64(trainBytes)),
		testPath, humanize.Bytes(uint64(testBytes)))

	paramsJSON, err := json.MarshalIndent(dataset.Params, "", "  ")
	if err != nil {
		return err
	}
	paramsPath := filepath.Join(outputDir, task.ID+"_params.json")
	if err := os.WriteFile(paramsPath, paramsJSON, 0644); err != nil {
		return err
	}

	if batchSize > 0 {
		train, test, err := dataset.Dense(batchSize)
		if err != nil {
			return err
		}
		log.Printf("%s: dense batches of %d: train %v, test %v", task.ID,
			batchSize, train.Story.Shape(), test.Story.Shape())
	}
	return nil
}
