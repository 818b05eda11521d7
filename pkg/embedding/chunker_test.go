package embedding_test

import (
	"strings"
	"testing"

	"github.com/kodaiva/mcp-memory/pkg/embedding"
	"github.com/m-mizutani/gt"
)

func TestChunkShortTextIsSingleWindow(t *testing.T) {
	windows := embedding.Chunk("short text", embedding.ChunkOptions{ChunkSize: 1000, Overlap: 200})
	gt.A(t, windows).Length(1)
	gt.Equal(t, windows[0].Text, "short text")
}

func TestChunkLongTextCoversEntireInput(t *testing.T) {
	text := strings.Repeat("x ", 600) // 1200 chars
	opts := embedding.ChunkOptions{ChunkSize: 1000, Overlap: 200}
	windows := embedding.Chunk(text, opts)

	gt.A(t, windows).Longer(1)
	for _, w := range windows {
		gt.True(t, len([]rune(w.Text)) > 0)
	}
	gt.Equal(t, windows[0].Index, 0)
	gt.Equal(t, windows[len(windows)-1].Index, len(windows)-1)
}

func TestChunkFinalWindowMayBeShorter(t *testing.T) {
	text := strings.Repeat("a", 1100)
	windows := embedding.Chunk(text, embedding.ChunkOptions{ChunkSize: 1000, Overlap: 200})
	gt.A(t, windows).Length(2)
	gt.Equal(t, len([]rune(windows[1].Text)), 300)
}
