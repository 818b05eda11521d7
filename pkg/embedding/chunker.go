package embedding

// ChunkOptions configures the sliding-window chunker (C5, spec §4.3).
type ChunkOptions struct {
	ChunkSize int
	Overlap   int
}

// DefaultChunkOptions matches the spec's configured defaults.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{ChunkSize: 1000, Overlap: 200}
}

// Window is one sliding window produced by Chunk.
type Window struct {
	Index int
	Text  string
}

// Chunk splits text into overlapping windows of ChunkSize characters
// advancing by ChunkSize-Overlap, covering the entire input. Short
// input (<= ChunkSize) yields a single window. The final window may
// be shorter than ChunkSize.
func Chunk(text string, opts ChunkOptions) []Window {
	if opts.ChunkSize <= 0 {
		opts = DefaultChunkOptions()
	}
	runes := []rune(text)
	if len(runes) <= opts.ChunkSize {
		return []Window{{Index: 0, Text: text}}
	}

	stride := opts.ChunkSize - opts.Overlap
	if stride <= 0 {
		stride = opts.ChunkSize
	}

	var windows []Window
	for start := 0; start < len(runes); start += stride {
		end := start + opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, Window{Index: len(windows), Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return windows
}
