// Package records serializes padded examples as flat sequential binary
// records. Per example, three little-endian fields are written back to back:
//
//	uint32 element count | count × int64   flattened story (sentences concatenated)
//	uint32 element count | count × int64   query
//	uint32 element count | count × int64   answer (always one element)
//
// The counts make each field self-delimiting, so a reader can rebuild the
// three-way split with no external knowledge beyond the dataset's padding
// metadata (needed only to reshape the flat story into sentences).
package records

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	babi "github.com/qadata/babi_prep"
)

// Writer appends records to a file, sequentially. No seeking, no
// compression.
type Writer struct {
	file    *os.File
	buf     *bufio.Writer
	written int64
	count   int
}

func NewWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_TRUNC|os.O_RDWR|os.O_CREATE, 0755)
	if err != nil {
		return nil, err
	}
	return &Writer{file: file, buf: bufio.NewWriter(file)}, nil
}

func (w *Writer) Write(example *babi.EncodedExample) error {
	record, err := Marshal(example)
	if err != nil {
		return err
	}
	n, err := w.buf.Write(record)
	w.written += int64(n)
	if err != nil {
		return err
	}
	w.count++
	return nil
}

// BytesWritten reports the bytes handed to the underlying buffer so far.
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// Count reports the records written so far.
func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// WriteFile serializes every example to path, one record per example, and
// reports the byte count written.
func WriteFile(path string, examples []babi.EncodedExample) (int64, error) {
	writer, err := NewWriter(path)
	if err != nil {
		return 0, err
	}
	for idx := range examples {
		if err := writer.Write(&examples[idx]); err != nil {
			writer.Close()
			return writer.BytesWritten(), err
		}
	}
	return writer.BytesWritten(), writer.Close()
}

// Marshal renders one example as a single record.
func Marshal(example *babi.EncodedExample) ([]byte, error) {
	flatLen := 0
	for _, sentence := range example.Story {
		flatLen += len(sentence)
	}
	flat := make(babi.TokenIDs, 0, flatLen)
	for _, sentence := range example.Story {
		flat = append(flat, sentence...)
	}
	buf := bytes.NewBuffer(make([]byte, 0,
		12+(flatLen+len(example.Query)+1)*8))
	if err := writeField(buf, flat); err != nil {
		return nil, err
	}
	if err := writeField(buf, example.Query); err != nil {
		return nil, err
	}
	if err := writeField(buf, babi.TokenIDs{example.Answer}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, ids babi.TokenIDs) error {
	if err := binary.Write(buf, binary.LittleEndian,
		uint32(len(ids))); err != nil {
		return err
	}
	for idx := range ids {
		if err := binary.Write(buf, binary.LittleEndian,
			int64(ids[idx])); err != nil {
			return err
		}
	}
	return nil
}

// Record is one deserialized example. Story stays flat until reshaped with
// the dataset's sentence length.
type Record struct {
	Story  babi.TokenIDs
	Query  babi.TokenIDs
	Answer babi.TokenID
}

// Reshape splits the flat story back into sentences of the given length.
func (r *Record) Reshape(sentenceLength int) ([]babi.TokenIDs, error) {
	if sentenceLength <= 0 || len(r.Story)%sentenceLength != 0 {
		return nil, fmt.Errorf(
			"story of %d ids does not divide into sentences of %d",
			len(r.Story), sentenceLength)
	}
	story := make([]babi.TokenIDs, 0, len(r.Story)/sentenceLength)
	for begin := 0; begin < len(r.Story); begin += sentenceLength {
		story = append(story, r.Story[begin:begin+sentenceLength])
	}
	return story, nil
}

// ReadFile maps the record file read-only and decodes every record. The
// returned slices are copies; the mapping is released before returning.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return nil, nil
	}
	mapped, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer mapped.Unmap()
	recs := make([]Record, 0, 1024)
	data := []byte(mapped)
	for len(data) > 0 {
		record, rest, err := unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, len(recs), err)
		}
		recs = append(recs, record)
		data = rest
	}
	return recs, nil
}

func unmarshal(data []byte) (Record, []byte, error) {
	story, data, err := readField(data)
	if err != nil {
		return Record{}, nil, fmt.Errorf("story: %w", err)
	}
	query, data, err := readField(data)
	if err != nil {
		return Record{}, nil, fmt.Errorf("query: %w", err)
	}
	answer, data, err := readField(data)
	if err != nil {
		return Record{}, nil, fmt.Errorf("answer: %w", err)
	}
	if len(answer) != 1 {
		return Record{}, nil, fmt.Errorf(
			"answer field wants 1 id, got %d", len(answer))
	}
	return Record{Story: story, Query: query, Answer: answer[0]}, data, nil
}

func readField(data []byte) (babi.TokenIDs, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated length prefix")
	}
	count := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	need := count * 8
	if len(data) < need {
		return nil, nil, fmt.Errorf("field wants %d bytes, %d remain",
			need, len(data))
	}
	ids := make(babi.TokenIDs, count)
	for idx := range ids {
		ids[idx] = babi.TokenID(binary.LittleEndian.Uint64(data[idx*8:]))
	}
	return ids, data[need:], nil
}
