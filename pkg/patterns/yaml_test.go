package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

func TestParseYAML(t *testing.T) {
	src := `
version: v1.1.0
threats:
  - technique: Endpoint Denial of Service
    technique_id: T1499
    mitigation: Filter Network Traffic
    mitigation_id: M1037
    detect_pattern: [InitialNode, "...", [AcceptEventAction, Receive Request]]
    mitigation_patterns:
      - [[OpaqueAction, Rate Limit Requests]]
    mitigation_anchor: 1
  - technique: Data Destruction
    technique_id: T1485
    mitigation: Data Backup
    mitigation_id: M1053
    detect_pattern: [DataStoreNode]
    mitigation_patterns: []
`
	lib, err := ParseYAML(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", lib.Version)
	require.Len(t, lib.Threats, 2)

	assert.Equal(t, []models.Token{
		models.LiteralToken("InitialNode"),
		models.WildcardToken(),
		models.SemanticToken("AcceptEventAction", "Receive Request"),
	}, lib.Threats[0].DetectPattern)
	assert.Equal(t, [][]models.Token{{models.SemanticToken("OpaqueAction", "Rate Limit Requests")}},
		lib.Threats[0].MitigationPatterns)
	assert.Equal(t, 1, lib.Threats[0].MitigationAnchor)
	assert.Equal(t, models.AnchorAfterPath, lib.Threats[1].MitigationAnchor, "anchor defaults to after the path")
}

func TestParseYAMLEmptyDocument(t *testing.T) {
	lib, err := ParseYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, lib.Threats)
}

func TestParseYAMLUnknownField(t *testing.T) {
	_, err := ParseYAML(strings.NewReader("threats:\n  - techniqe: typo\n"))
	assert.Error(t, err)
}

func TestParseYAMLBadToken(t *testing.T) {
	src := "threats:\n  - technique: X\n    detect_pattern: [[a, b, c]]\n    mitigation_patterns: []\n"
	_, err := ParseYAML(strings.NewReader(src))
	assert.ErrorIs(t, err, ErrInvalidLiteral)
}
