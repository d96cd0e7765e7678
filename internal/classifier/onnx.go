// Package classifier provides injection-likelihood scorers for the pipeline:
// a local ONNX bundle, a remote scoring sidecar, and a fixed stub. All of
// them satisfy the pipeline's Scorer contract.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXScorer runs a sequence-classification model exported to ONNX. The
// session and its bound tensors are reused across calls under a mutex;
// scoring is CPU-only and synchronous.
type ONNXScorer struct {
	session       *ort.AdvancedSession
	tokenizer     *wordPieceTokenizer
	injectionIdx  int
	numLabels     int
	seqLen        int
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadONNX initializes the ONNX session and tokenizer from a bundle
// directory containing model.onnx, vocab.txt, and label_map.json.
func LoadONNX(bundleDir string, seqLen int) (*ONNXScorer, error) {
	if bundleDir == "" {
		return nil, errors.New("bundleDir is empty")
	}
	if seqLen <= 0 {
		seqLen = 512
	}

	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or place it in the bundle")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(bundleDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	tokenizer, err := loadWordPieceTokenizer(filepath.Join(bundleDir, "vocab.txt"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	labels, injectionIdx, err := loadLabelMap(filepath.Join(bundleDir, "label_map.json"))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXScorer{
		session:       session,
		tokenizer:     tokenizer,
		injectionIdx:  injectionIdx,
		numLabels:     len(labels),
		seqLen:        seqLen,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// Score returns the softmax probability of the injection label.
func (s *ONNXScorer) Score(ctx context.Context, text string) (float64, error) {
	if s == nil || s.session == nil {
		return 0, errors.New("onnx scorer not initialized")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ids, mask := s.tokenizer.Encode(text, s.seqLen)

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputIDs.GetData(), ids)
	copy(s.attentionMask.GetData(), mask)

	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run: %w", err)
	}

	logits := s.output.GetData()
	if s.injectionIdx >= len(logits) {
		return 0, fmt.Errorf("injection label index %d out of range", s.injectionIdx)
	}

	return softmaxAt(logits, s.injectionIdx), nil
}

// Close releases the session and its tensors.
func (s *ONNXScorer) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{s.inputIDs, s.attentionMask} {
		if t != nil {
			t.Destroy()
		}
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// softmaxAt computes softmax over logits and returns the probability at idx.
func softmaxAt(logits []float32, idx int) float64 {
	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		if float64(l) > maxLogit {
			maxLogit = float64(l)
		}
	}

	var sum float64
	for _, l := range logits {
		sum += math.Exp(float64(l) - maxLogit)
	}

	return math.Exp(float64(logits[idx])-maxLogit) / sum
}

// loadLabelMap reads {"0": "SAFE", "1": "INJECTION"} and returns the labels
// plus the index of the injection label (default 1 when unnamed).
func loadLabelMap(path string) ([]string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, 0, err
	}

	labels := make([]string, len(m))
	injectionIdx := -1
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, 0, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, 0, fmt.Errorf("label index %d out of range", idx)
		}
		labels[idx] = v
		if strings.EqualFold(v, "injection") {
			injectionIdx = idx
		}
	}
	if injectionIdx < 0 {
		if len(labels) < 2 {
			return nil, 0, errors.New("label map has no injection label")
		}
		injectionIdx = 1
	}

	return labels, injectionIdx, nil
}

// resolveSharedLibraryPath picks the onnxruntime shared library: the env
// override first, then a copy shipped inside the bundle.
func resolveSharedLibraryPath(bundleDir string) string {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}

	name := "libonnxruntime.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	}

	p := filepath.Join(bundleDir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}

	return ""
}
