package reference

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// LoadFasta reads a FASTA file and returns a Reference over its sequences.
func LoadFasta(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference %s: %w", path, err)
	}
	defer f.Close()
	return ReadFasta(f)
}

// ReadFasta parses FASTA records from r. Sequence characters are converted
// to base codes; anything outside ACGT becomes N.
func ReadFasta(r io.Reader) (*Reference, error) {
	var (
		names []string
		seqs  [][]byte
		cur   []byte
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if cur != nil {
				seqs = append(seqs, cur)
			}
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("fasta: empty sequence name")
			}
			names = append(names, string(fields[0]))
			cur = []byte{}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("fasta: sequence data before first header")
		}
		for _, ch := range line {
			cur = append(cur, CharToCode[ch])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading fasta: %w", err)
	}
	if cur != nil {
		seqs = append(seqs, cur)
	}
	return New(names, seqs)
}
