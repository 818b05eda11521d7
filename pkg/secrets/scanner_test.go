package secrets_test

import (
	"strings"
	"testing"

	"github.com/kodaiva/mcp-memory/pkg/secrets"
	"github.com/m-mizutani/gt"
)

func TestScanBlocksHighConfidence(t *testing.T) {
	scanner := secrets.NewScanner(0)

	result, err := scanner.Scan("key=sk-" + strings.Repeat("a", 48))
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionBlock)
	gt.A(t, result.Detections).Longer(0)
	gt.S(t, result.Sanitized).Contains("[REDACTED_OPENAI_API_KEY]")
}

func TestScanAdmitsCleanText(t *testing.T) {
	scanner := secrets.NewScanner(0)

	result, err := scanner.Scan("the quick brown fox jumps over the lazy dog")
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionAdmit)
	gt.A(t, result.Detections).Length(0)
}

func TestScanCreditCardFailsLuhnIsNotDetected(t *testing.T) {
	scanner := secrets.NewScanner(0)

	result, err := scanner.Scan("card: 4532015112830367")
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionAdmit)
	gt.A(t, result.Detections).Length(0)
}

func TestScanMediumThresholdBlocks(t *testing.T) {
	scanner := secrets.NewScanner(3)

	text := "bearer aaaaaaaaaaaaaaaaaaaa bearer bbbbbbbbbbbbbbbbbbbb bearer cccccccccccccccccccc"
	result, err := scanner.Scan(text)
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionBlock)
}

func TestScanBelowThresholdWarnsOnly(t *testing.T) {
	scanner := secrets.NewScanner(3)

	result, err := scanner.Scan("bearer aaaaaaaaaaaaaaaaaaaa")
	gt.NoError(t, err)
	gt.Equal(t, result.Decision, secrets.DecisionAdmitWithWarning)
}

func TestScanOverlapDeduplication(t *testing.T) {
	scanner := secrets.NewScanner(0)

	// A generic secret assignment subsumes an email-shaped substring;
	// only the higher-confidence, non-overlapping detections survive.
	result, err := scanner.Scan("API_SECRET_KEY=ops@example.com contact me@example.com")
	gt.NoError(t, err)

	for i := 0; i < len(result.Detections); i++ {
		for j := i + 1; j < len(result.Detections); j++ {
			a, b := result.Detections[i], result.Detections[j]
			overlap := a.Start < b.End && b.Start < a.End
			gt.False(t, overlap)
		}
	}
}

func TestSanitizeRedactsDetectedSecret(t *testing.T) {
	scanner := secrets.NewScanner(0)

	text := "token: " + strings.Repeat("b", 48)
	sanitized, err := scanner.Sanitize("key=sk-" + strings.Repeat("a", 48) + " " + text)
	gt.NoError(t, err)
	gt.S(t, sanitized).Contains("[REDACTED_OPENAI_API_KEY]")
}

func TestScanDeterministic(t *testing.T) {
	scanner := secrets.NewScanner(0)
	text := "email me at person@example.com or call 555-123-4567"

	first, err := scanner.Scan(text)
	gt.NoError(t, err)
	second, err := scanner.Scan(text)
	gt.NoError(t, err)

	gt.Equal(t, first.Decision, second.Decision)
	gt.Equal(t, first.Sanitized, second.Sanitized)
	gt.Equal(t, len(first.Detections), len(second.Detections))
}
