// Package fastq reads FASTQ records for single and paired-end input.
package fastq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// Record is one FASTQ read: raw sequence characters and phred+33 qualities.
type Record struct {
	Name string
	Seq  []byte
	Qual []byte
}

// Reader iterates over FASTQ records.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader wraps r for record iteration.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<12), 1<<22)
	return &Reader{sc: sc}
}

// Open opens a FASTQ file and returns a reader plus its closer.
func Open(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening reads %s: %w", path, err)
	}
	return NewReader(f), f, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (*Record, error) {
	header, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	if len(header) == 0 || header[0] != '@' {
		return nil, fmt.Errorf("fastq: line %d: expected '@' header, got %q", r.line, header)
	}
	seq, err := r.nextLine()
	if err != nil {
		return nil, fmt.Errorf("fastq: truncated record at line %d", r.line)
	}
	plus, err := r.nextLine()
	if err != nil || len(plus) == 0 || plus[0] != '+' {
		return nil, fmt.Errorf("fastq: line %d: expected '+' separator", r.line)
	}
	qual, err := r.nextLine()
	if err != nil {
		return nil, fmt.Errorf("fastq: truncated record at line %d", r.line)
	}
	if len(qual) != len(seq) {
		return nil, fmt.Errorf("fastq: line %d: quality length %d != sequence length %d", r.line, len(qual), len(seq))
	}
	name := string(bytes.Fields(header[1:])[0])
	return &Record{
		Name: name,
		Seq:  append([]byte(nil), seq...),
		Qual: append([]byte(nil), qual...),
	}, nil
}

func (r *Reader) nextLine() ([]byte, error) {
	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
