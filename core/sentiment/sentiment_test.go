package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kybradar/kybradar/refdata"
)

type memStore map[string]string

func (m memStore) Load(name string) ([]byte, error) {
	return []byte(m[name]), nil
}

func TestAggregate(t *testing.T) {
	t.Run("No labels is neutral", func(t *testing.T) {
		label, share := Aggregate(nil)

		assert.Equal(t, "NEUTRAL", label)
		assert.Equal(t, float64(0), share)
	})

	t.Run("Majority negative wins", func(t *testing.T) {
		label, share := Aggregate([]string{"NEGATIVE", "NEGATIVE", "POSITIVE"})

		assert.Equal(t, "NEGATIVE", label)
		assert.InDelta(t, 2.0/3.0, share, 1e-9)
	})

	t.Run("Majority positive wins", func(t *testing.T) {
		label, share := Aggregate([]string{"positive", "POSITIVE", "NEGATIVE"})

		assert.Equal(t, "POSITIVE", label)
		assert.InDelta(t, 1.0/3.0, share, 1e-9)
	})

	t.Run("Tie is neutral", func(t *testing.T) {
		label, _ := Aggregate([]string{"POSITIVE", "NEGATIVE"})

		assert.Equal(t, "NEUTRAL", label)
	})
}

func TestAnalyzeCustomer(t *testing.T) {
	library := refdata.NewLibrary(memStore{
		refdata.DocNews: `{"customers":{
			"CUST-4001":[
				{"source":"trade-press","text":"Regulator investigates remittance firm"},
				{"source":"local-news","text":"Firm wins export award"}
			]
		}}`,
	})

	classify := func(text string) (string, float64, error) {
		if strings.Contains(text, "investigates") {
			return "NEGATIVE", 0.93, nil
		}
		return "POSITIVE", 0.88, nil
	}

	t.Run("Snippets are classified and aggregated", func(t *testing.T) {
		analyzer := NewAnalyzerWithClassifier(library, classify)

		result, err := analyzer.AnalyzeCustomer("CUST-4001")

		require.NoError(t, err)
		assert.Equal(t, "CUST-4001", result.CustomerID)
		require.Len(t, result.Snippets, 2)
		assert.Equal(t, "NEGATIVE", result.Snippets[0].Label)
		assert.Equal(t, "POSITIVE", result.Snippets[1].Label)
		assert.Equal(t, "NEUTRAL", result.OverallLabel)
		assert.InDelta(t, 0.5, result.NegativeShare, 1e-9)
	})

	t.Run("Customer without snippets yields neutral empty result", func(t *testing.T) {
		analyzer := NewAnalyzerWithClassifier(library, classify)

		result, err := analyzer.AnalyzeCustomer("CUST-9999")

		require.NoError(t, err)
		assert.Empty(t, result.Snippets)
		assert.Equal(t, "NEUTRAL", result.OverallLabel)
	})

	t.Run("Close without a session is a no-op", func(t *testing.T) {
		analyzer := NewAnalyzerWithClassifier(library, classify)

		assert.NoError(t, analyzer.Close())
	})
}
