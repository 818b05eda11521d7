//go:build onnx

package embedding

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrLocalModel is returned when the local ONNX model or tokenizer
// cannot be loaded.
var ErrLocalModel = goerr.New("local embedding model unavailable")

const maxSequenceLen = 128

// onnxBackend runs mean-pooled, L2-normalized feature extraction over
// a BERT-family ONNX model. Grounded on
// becomeliminal-nim-go-sdk/memory/embedder/onnx.ONNXEmbedder,
// generalized to the configured model/cache-dir instead of hardcoded
// paths.
type onnxBackend struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *bertTokenizer
}

func newLocalBackend(cfg LocalConfig) (localBackend, error) {
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, goerr.Wrap(ErrLocalModel, "cannot resolve cache dir")
		}
		cacheDir = filepath.Join(home, ".cache", "mcp-memory", "models")
	}

	modelPath := filepath.Join(cacheDir, cfg.ModelID, "model.onnx")
	tokenizerPath := filepath.Join(cacheDir, cfg.ModelID, "tokenizer.json")

	tokenizer, err := loadBERTTokenizer(tokenizerPath)
	if err != nil {
		return nil, goerr.Wrap(ErrLocalModel, "failed to load tokenizer", goerr.V("path", tokenizerPath))
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, goerr.Wrap(ErrLocalModel, "failed to initialize ONNX runtime")
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, goerr.Wrap(ErrLocalModel, "failed to create ONNX session", goerr.V("path", modelPath))
	}

	return &onnxBackend{session: session, tokenizer: tokenizer}, nil
}

func (b *onnxBackend) embed(ctx context.Context, text string, dims int) ([]float32, error) {
	tokens := b.tokenizer.Tokenize(text)

	inputIDs := make([]int64, maxSequenceLen)
	attentionMask := make([]int64, maxSequenceLen)
	tokenTypeIDs := make([]int64, maxSequenceLen)

	inputIDs[0] = int64(b.tokenizer.clsToken)
	attentionMask[0] = 1

	tokenLen := len(tokens)
	if tokenLen > maxSequenceLen-2 {
		tokenLen = maxSequenceLen - 2
	}
	for i := 0; i < tokenLen; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}
	endPos := tokenLen + 1
	inputIDs[endPos] = int64(b.tokenizer.sepToken)
	attentionMask[endPos] = 1

	shape := ort.NewShape(1, int64(maxSequenceLen))
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer inputIDsTensor.Destroy()

	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, err
	}
	defer attentionMaskTensor.Destroy()

	tokenTypeIDsTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, err
	}
	defer tokenTypeIDsTensor.Destroy()

	inputs := []ort.Value{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor}
	outputs := []ort.Value{nil}
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, goerr.Wrap(ErrLocalModel, "onnx inference failed")
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, goerr.Wrap(ErrLocalModel, "unexpected output tensor type")
	}
	data := outputTensor.GetData()
	shapeOut := outputTensor.GetShape()

	var embedding []float32
	if len(shapeOut) == 2 {
		embedding = make([]float32, dims)
		copy(embedding, data[:dims])
	} else if len(shapeOut) == 3 {
		seqLen := int(shapeOut[1])
		hidden := int(shapeOut[2])
		embedding = make([]float32, hidden)
		attended := float32(0)
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * hidden
			for j := 0; j < hidden; j++ {
				embedding[j] += data[offset+j]
			}
		}
		if attended > 0 {
			for j := range embedding {
				embedding[j] /= attended
			}
		}
	} else {
		return nil, goerr.Wrap(ErrLocalModel, "unexpected output shape")
	}

	return l2Normalize(embedding), nil
}

// bertTokenizer is a minimal WordPiece tokenizer sufficient for
// mean-pooled sentence embeddings, grounded on the teacher's
// BERTTokenizer.
type bertTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadBERTTokenizer(path string) (*bertTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &bertTokenizer{
		vocab:    doc.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}, nil
}

func (t *bertTokenizer) Tokenize(text string) []int64 {
	text = strings.ToLower(text)
	var tokens []int64
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,!?;:\"'")
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, sub := range t.wordPiece(word) {
			if id, ok := t.vocab[sub]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

func (t *bertTokenizer) wordPiece(word string) []string {
	if word == "" {
		return nil
	}
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for end > start {
			substr := word[start:end]
			if start > 0 {
				substr = "##" + substr
			}
			if _, ok := t.vocab[substr]; ok {
				pieces = append(pieces, substr)
				start = end
				found = true
				break
			}
			end--
		}
		if !found {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}
