package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// wordPieceTokenizer is a minimal BERT-style tokenizer: lowercase, split on
// whitespace and punctuation, then greedy longest-match against the vocab
// with "##" continuation pieces.
type wordPieceTokenizer struct {
	vocab map[string]int64
	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// loadWordPieceTokenizer builds the tokenizer from a vocab.txt file, one
// token per line, line number = token id.
func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}

	return &wordPieceTokenizer{
		vocab: vocab,
		clsID: vocab["[CLS]"],
		sepID: vocab["[SEP]"],
		padID: vocab["[PAD]"],
		unkID: vocab["[UNK]"],
	}, nil
}

// Encode produces input ids and an attention mask of exactly seqLen entries.
func (t *wordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	ids := make([]int64, 0, seqLen)
	ids = append(ids, t.clsID)

	for _, word := range basicTokenize(text) {
		ids = append(ids, t.wordPiece(word)...)
		if len(ids) >= seqLen-1 {
			break
		}
	}

	if len(ids) > seqLen-1 {
		ids = ids[:seqLen-1]
	}
	ids = append(ids, t.sepID)

	mask := make([]int64, seqLen)
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < seqLen {
		ids = append(ids, t.padID)
	}

	return ids, mask
}

// wordPiece splits one lowercase word into vocab pieces, greedy longest
// match first. An unmatchable word maps to a single [UNK].
func (t *wordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	pieces := make([]int64, 0, 4)

	start := 0
	for start < len(runes) {
		end := len(runes)
		var id int64
		found := false
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := t.vocab[piece]; ok {
				id = v
				found = true
				break
			}
			end--
		}
		if !found {
			return []int64{t.unkID}
		}
		pieces = append(pieces, id)
		start = end
	}

	return pieces
}

// basicTokenize lowercases and splits text into words and single
// punctuation tokens.
func basicTokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}
