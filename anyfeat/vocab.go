package anyfeat

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/unixpickle/essentials"
)

// BlankTokens are the vocabulary entries recognized as
// the CTC blank.
var BlankTokens = []string{"<blk>", "<blank>", "[blank]"}

// A Vocab maps tokens to output classes.
//
// Classes are numbered in file order, skipping the blank
// token; the blank itself is class OutputDim(), which is
// where the recognizer puts it.
type Vocab struct {
	Tokens []string

	// Blank is the blank token found in the file, or ""
	// if the file had none.
	Blank string

	index map[string]int
}

// LoadVocab reads a vocabulary file.
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load vocab", err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab reads a vocabulary with one token per line.
//
// Only the first field of each line is used, so files
// which list "token id" pairs work too.
// Blank lines are skipped.
func ReadVocab(r io.Reader) (*Vocab, error) {
	res := &Vocab{index: map[string]int{}}
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		token := fields[0]
		if isBlank(token) {
			if res.Blank != "" {
				return nil, fmt.Errorf("read vocab: line %d: second blank token %q", line, token)
			}
			res.Blank = token
			continue
		}
		if _, ok := res.index[token]; ok {
			return nil, fmt.Errorf("read vocab: line %d: duplicate token %q", line, token)
		}
		res.index[token] = len(res.Tokens)
		res.Tokens = append(res.Tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, essentials.AddCtx("read vocab", err)
	}
	if len(res.Tokens) == 0 {
		return nil, fmt.Errorf("read vocab: no tokens")
	}
	return res, nil
}

// OutputDim returns the number of real classes.
func (v *Vocab) OutputDim() int {
	return len(v.Tokens)
}

// Class returns the class of a token.
func (v *Vocab) Class(token string) (int, bool) {
	if v.index == nil {
		v.index = map[string]int{}
		for i, t := range v.Tokens {
			v.index[t] = i
		}
	}
	idx, ok := v.index[token]
	return idx, ok
}

// Encode maps tokens to classes.
func (v *Vocab) Encode(tokens []string) ([]int, error) {
	res := make([]int, len(tokens))
	for i, token := range tokens {
		class, ok := v.Class(token)
		if !ok {
			return nil, fmt.Errorf("encode: unknown token %q", token)
		}
		res[i] = class
	}
	return res, nil
}

// Render joins the tokens of a label sequence with sep.
// Out of range labels, including the blank, render as
// "<unk>".
func (v *Vocab) Render(labels []int, sep string) string {
	parts := make([]string, len(labels))
	for i, label := range labels {
		if label < 0 || label >= len(v.Tokens) {
			parts[i] = "<unk>"
		} else {
			parts[i] = v.Tokens[label]
		}
	}
	return strings.Join(parts, sep)
}

func isBlank(token string) bool {
	for _, b := range BlankTokens {
		if token == b {
			return true
		}
	}
	return false
}
