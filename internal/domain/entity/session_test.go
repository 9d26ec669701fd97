package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

const envelopeJSON = `{
  "session": {
    "session_id": "QS_1A2B3C4D",
    "scenario_name": "TV_AUTO_SYNC",
    "started_at": "2025-01-10T10:00:00Z",
    "finished_at": "2025-01-10T10:04:00Z",
    "overall_status": "FAIL",
    "has_failure": true,
    "brand_mismatch": false,
    "tv_brand_user": "LG",
    "tv_brand_log": null,
    "has_volume_issue": true,
    "has_osd_issue": false,
    "analyzer_ready": true,
    "volume_status": "FAIL",
    "osd_status": "SOMETIMES"
  },
  "timeline": [
    {"name": "test_started", "status": "INFO", "details": {}},
    {
      "name": "analysis_summary",
      "status": "FAIL",
      "details": {
        "analysis": "Volume did not change on TV",
        "tester_verdict": "PASS",
        "log_verdict": "INCONCLUSIVE",
        "telemetry_state": "UNKNOWN",
        "conflict_tester_vs_logs": true,
        "failed_steps": ["question_tv_volume_changed"],
        "evidence": {
          "tv_brand_detected": "Samsung",
          "tv_brand_user": "LG",
          "ir_commands_sent": 4,
          "volume_level_state": null
        },
        "tv_brand_log": "Samsung"
      }
    }
  ]
}`

func decodeEnvelope(t *testing.T) *SessionEnvelope {
	t.Helper()
	var envelope SessionEnvelope
	require.NoError(t, json.Unmarshal([]byte(envelopeJSON), &envelope))
	return &envelope
}

func TestSessionEnvelopeDecoding(t *testing.T) {
	envelope := decodeEnvelope(t)

	assert.Equal(t, "QS_1A2B3C4D", envelope.Session.SessionID)
	assert.True(t, envelope.IsComplete())
	assert.True(t, envelope.Session.IsEvaluated())
	assert.Equal(t, "LG", envelope.Session.UserBrand())
	assert.Equal(t, "", envelope.Session.LogBrand())
	assert.Equal(t, valueobject.MetricStatus(""), envelope.Session.BrandStatus)
	assert.Equal(t, valueobject.StatusFail, envelope.Session.VolumeStatus)
	// неизвестное значение сохраняется, чтобы reconciler мог его отбросить
	assert.Equal(t, valueobject.MetricStatus("SOMETIMES"), envelope.Session.OSDStatus)
}

func TestSessionEnvelopeAnalysisEvidence(t *testing.T) {
	evidence := decodeEnvelope(t).AnalysisEvidence()
	require.NotNil(t, evidence)

	assert.True(t, evidence.ConflictTesterVsLogs)
	assert.True(t, evidence.LogVerdict.Is(valueobject.LogInconclusive))
	assert.True(t, evidence.HasFailedStep("question_tv_volume_changed"))
	assert.False(t, evidence.HasFailedStep(BrandConfirmationStep))
	assert.Equal(t, "Samsung", evidence.EvidenceString("tv_brand_detected"))
	assert.Equal(t, "4", evidence.EvidenceString("ir_commands_sent"))
	assert.Equal(t, "", evidence.EvidenceString("volume_level_state"))

	user, log := evidence.DerivedBrands()
	assert.Equal(t, "LG", user)
	assert.Equal(t, "Samsung", log)
}

func TestDerivedBrandsUsesDetectedBrand(t *testing.T) {
	var evidence AnalysisEvidence
	require.NoError(t, json.Unmarshal([]byte(`{"evidence":{"tv_brand_detected":"Samsung"}}`), &evidence))

	user, log := evidence.DerivedBrands()
	assert.Equal(t, "", user)
	assert.Equal(t, "Samsung", log)

	evidence.TVBrandLog = "TCL"
	_, log = evidence.DerivedBrands()
	assert.Equal(t, "Samsung", log, "raw evidence wins over payload field")
}

func TestSessionEnvelopeWithoutSummary(t *testing.T) {
	envelope := &SessionEnvelope{Timeline: []TimelineEvent{{Name: "test_started"}}}
	assert.Nil(t, envelope.AnalysisEvidence())

	var nilEnvelope *SessionEnvelope
	assert.Nil(t, nilEnvelope.AnalysisEvidence())
	assert.False(t, nilEnvelope.IsComplete())
}

func TestSessionCompletionPredicates(t *testing.T) {
	finished := "2025-01-10T10:04:00Z"
	empty := ""

	tests := []struct {
		name      string
		session   Session
		complete  bool
		evaluated bool
	}{
		{"running", Session{OverallStatus: valueobject.OverallPending}, false, false},
		{"finished but analyzer busy", Session{FinishedAt: &finished}, false, true},
		{"empty finished_at", Session{FinishedAt: &empty, AnalyzerReady: true}, false, false},
		{"terminal status without finish", Session{OverallStatus: valueobject.OverallPass, AnalyzerReady: true}, false, true},
		{"terminal", Session{FinishedAt: &finished, AnalyzerReady: true}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.complete, tt.session.IsComplete())
			assert.Equal(t, tt.evaluated, tt.session.IsEvaluated())
		})
	}
}

func TestSessionEnvelopeClone(t *testing.T) {
	original := decodeEnvelope(t)
	clone := original.Clone()
	require.NotNil(t, clone)

	clone.Session.AnalyzerReady = false
	*clone.Session.TVBrandUser = "Sony"

	assert.True(t, original.Session.AnalyzerReady)
	assert.Equal(t, "LG", original.Session.UserBrand())
}
