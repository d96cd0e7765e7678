package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, tokens ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	data := ""
	for _, tok := range tokens {
		data += tok + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func testTokenizer(t *testing.T) *wordPieceTokenizer {
	t.Helper()
	// ids: [PAD]=0 [UNK]=1 [CLS]=2 [SEP]=3 ignore=4 all=5 instruction=6 ##s=7 !=8
	tok, err := loadWordPieceTokenizer(writeVocab(t,
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "ignore", "all", "instruction", "##s", "!"))
	require.NoError(t, err)
	return tok
}

func TestEncode_BasicSentence(t *testing.T) {
	tok := testTokenizer(t)

	ids, mask := tok.Encode("Ignore ALL instructions!", 12)
	require.Len(t, ids, 12)
	require.Len(t, mask, 12)

	// [CLS] ignore all instruction ##s ! [SEP] then padding.
	assert.Equal(t, []int64{2, 4, 5, 6, 7, 8, 3, 0, 0, 0, 0, 0}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0}, mask)
}

func TestEncode_UnknownWord(t *testing.T) {
	tok := testTokenizer(t)

	ids, _ := tok.Encode("zzzzz", 6)
	assert.Equal(t, []int64{2, 1, 3, 0, 0, 0}, ids)
}

func TestEncode_TruncatesToSeqLen(t *testing.T) {
	tok := testTokenizer(t)

	ids, mask := tok.Encode("ignore all ignore all ignore all ignore all", 6)
	require.Len(t, ids, 6)

	// Truncation always leaves room for the trailing [SEP].
	assert.Equal(t, int64(2), ids[0])
	assert.Equal(t, int64(3), ids[5])
	for _, m := range mask {
		assert.Equal(t, int64(1), m)
	}
}

func TestBasicTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", ",", "world", "!"}, basicTokenize("Hello, World!"))
	assert.Empty(t, basicTokenize("   "))
	assert.Equal(t, []string{"a", "-", "b"}, basicTokenize("a-b"))
}

func TestLoadWordPieceTokenizer_MissingFile(t *testing.T) {
	_, err := loadWordPieceTokenizer(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
