package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClassificationOrder(t *testing.T) {
	var stems []string
	for _, c := range Classifications() {
		stems = append(stems, c.String())
	}
	assert.Equal(t, []string{
		"spoofing",
		"tampering",
		"repudiation",
		"information_disclosure",
		"denial_of_service",
		"elevation_of_privilege",
	}, stems)
}

func TestClassificationTitle(t *testing.T) {
	assert.Equal(t, "Information Disclosure", InformationDisclosure.Title())
	assert.Equal(t, "Denial of Service", DenialOfService.Title())
	assert.Equal(t, "Elevation of Privilege", ElevationOfPrivilege.Title())
	assert.Equal(t, "classification(9)", Classification(9).String())
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in   string
		want Classification
	}{
		{"spoofing", Spoofing},
		{"Denial of Service", DenialOfService},
		{"information-disclosure", InformationDisclosure},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClassification(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseClassification("phishing")
	assert.Error(t, err)
}

func TestDetectionJSON(t *testing.T) {
	d := Detection{
		Classification: Tampering,
		Threat: ThreatInfo{
			Technique:   "Stored Data Manipulation",
			TechniqueID: "T1565.001",
			DetectPattern: []Token{
				LiteralToken("AcceptEventAction"),
				WildcardToken(),
				SemanticToken("OpaqueAction", "Write"),
			},
			MitigationAnchor: AnchorAfterPath,
		},
	}
	data, err := json.Marshal(d)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "tampering", raw["classification"])
	threat := raw["threat"].(map[string]interface{})
	assert.Equal(t, []interface{}{"AcceptEventAction", "...", []interface{}{"OpaqueAction", "Write"}}, threat["detect_pattern"])

	var back Detection
	require.NoError(t, json.Unmarshal([]byte(`{"classification":"denial_of_service"}`), &back))
	assert.Equal(t, DenialOfService, back.Classification)
}

func TestThreatInfoRoundTrip(t *testing.T) {
	info := ThreatInfo{
		Technique:   "Stored Data Manipulation",
		TechniqueID: "T1565.001",
		DetectPattern: []Token{
			LiteralToken("AcceptEventAction"),
			WildcardToken(),
			SemanticToken("OpaqueAction", "Check\x01Auth"),
		},
		MitigationPatterns: [][]Token{
			{SemanticToken("OpaqueAction", "Validate Input"), LiteralToken("DataStoreNode")},
		},
		MitigationAnchor: 0,
	}

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(info)
		require.NoError(t, err)

		var back ThreatInfo
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, info, back)
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := yaml.Marshal(info)
		require.NoError(t, err)

		var back ThreatInfo
		require.NoError(t, yaml.Unmarshal(data, &back))
		assert.Equal(t, info, back)
	})
}

func TestTokenUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"pair too short", `["OpaqueAction"]`},
		{"pair too long", `["OpaqueAction", "a", "b"]`},
		{"number", `3`},
		{"object", `{"type": "Action"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tok Token
			assert.Error(t, json.Unmarshal([]byte(tt.in), &tok))
		})
	}

	var tok Token
	assert.Error(t, yaml.Unmarshal([]byte("[DataStoreNode]"), &tok))
}

func TestFormatPattern(t *testing.T) {
	got := FormatPattern([]Token{LiteralToken("InitialNode"), WildcardToken(), SemanticToken("Action", "Fetch")})
	assert.Equal(t, `["InitialNode", "...", ("Action", "Fetch")]`, got)
	assert.Equal(t, "Valid Accounts - T1078", ThreatInfo{Technique: "Valid Accounts", TechniqueID: "T1078"}.String())
}
