package vectorindex

// Vector space names as stored in the collection (spec §4.4/§6).
const (
	VectorDense      = "dense"
	VectorDenseLarge = "dense_large"
)

// HNSW and optimizer configuration applied at collection-create time.
// These are the spec's exact §6 constants.
const (
	HNSWM                  = 16
	HNSWEfConstruct        = 200
	HNSWFullScanThreshold  = 10_000
	DefaultSegmentNumber   = 2
	MaxSegmentSizeKB       = 200_000
	MemmapThresholdKB      = 50_000
	IndexingThresholdKB    = 20_000
	FlushIntervalSec       = 5
	QuantizationQuantile   = 0.99
	DefaultSearchEf        = 128
	FullTextMinTokenLen    = 2
	FullTextMaxTokenLen    = 20
)

// PayloadIndexes enumerates the payload fields indexed at collection
// init (spec §4.4), mapped to their index kind.
var PayloadIndexes = map[string]string{
	"workspace":        "keyword",
	"memory_type":      "keyword",
	"confidence":       "float",
	"created_at":       "datetime",
	"updated_at":       "datetime",
	"access_count":     "integer",
	"last_accessed_at": "datetime",
	"tags":             "keyword",
}

// CollectionConfig is the schema asserted or created by Initialize.
type CollectionConfig struct {
	Name        string
	SmallDims   int
	LargeDims   int
}
