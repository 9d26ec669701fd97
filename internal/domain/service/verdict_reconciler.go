package service

import (
	"strings"

	"github.com/dreschagin/quickset-dashboard/internal/domain/entity"
	"github.com/dreschagin/quickset-dashboard/internal/domain/valueobject"
)

// statusSource — одно звено цепочки приоритетов; ok=false передаёт решение дальше.
type statusSource func(in reconcileInput) (valueobject.MetricStatus, bool)

type reconcileInput struct {
	session  *entity.Session
	evidence *entity.AnalysisEvidence
	ready    bool
	mismatch bool
}

// VerdictReconciler сводит ответы тестировщика, вердикт логов и evidence
// в tri-state статусы метрик (Domain Service). Без I/O и состояния.
type VerdictReconciler struct {
	brand  []statusSource
	volume []statusSource
	osd    []statusSource
}

// NewVerdictReconciler создает новый VerdictReconciler
func NewVerdictReconciler() *VerdictReconciler {
	return &VerdictReconciler{
		brand: []statusSource{
			notEvaluatedUntilReady,
			sessionBrandStatus,
			mismatchIncompatibility,
			evidenceStatus(func(e *entity.AnalysisEvidence) valueobject.MetricStatus { return e.BrandStatus }),
			issueFlag(func(in reconcileInput) bool { return in.mismatch }),
		},
		volume: []statusSource{
			notEvaluatedUntilReady,
			sessionStatus(func(s *entity.Session) valueobject.MetricStatus { return s.VolumeStatus }),
			evidenceStatus(func(e *entity.AnalysisEvidence) valueobject.MetricStatus { return e.VolumeStatus }),
			issueFlag(func(in reconcileInput) bool { return in.session.HasVolumeIssue }),
		},
		osd: []statusSource{
			notEvaluatedUntilReady,
			sessionStatus(func(s *entity.Session) valueobject.MetricStatus { return s.OSDStatus }),
			evidenceStatus(func(e *entity.AnalysisEvidence) valueobject.MetricStatus { return e.OSDStatus }),
			issueFlag(func(in reconcileInput) bool { return in.session.HasOSDIssue }),
		},
	}
}

// Reconcile вычисляет вердикт для snapshot'а сессии. evidence может быть nil.
func (r *VerdictReconciler) Reconcile(session *entity.Session, evidence *entity.AnalysisEvidence) entity.Verdict {
	if session == nil {
		session = &entity.Session{}
	}

	in := reconcileInput{
		session:  session,
		evidence: evidence,
		ready:    session.IsEvaluated(),
	}
	in.mismatch = brandMismatch(session, evidence)

	derivedUser, derivedLog := evidence.DerivedBrands()

	verdict := entity.Verdict{
		Ready:              in.ready,
		Brand:              resolve(r.brand, in),
		Volume:             resolve(r.volume, in),
		OSD:                resolve(r.osd, in),
		PreferredUserBrand: firstNonEmpty(session.UserBrand(), derivedUser),
		PreferredLogBrand:  firstNonEmpty(session.LogBrand(), derivedLog),
		BrandMismatch:      in.mismatch,
	}

	if evidence != nil {
		verdict.TesterVerdict = evidence.TesterVerdict
		verdict.LogVerdict = evidence.LogVerdict
		verdict.TelemetryState = evidence.TelemetryState
		verdict.FailureReason = strings.TrimSpace(evidence.LogFailureReason)
		verdict.Conflict, verdict.ConflictReason = detectConflict(evidence)
	}

	return verdict
}

func resolve(chain []statusSource, in reconcileInput) valueobject.MetricStatus {
	for _, source := range chain {
		if status, ok := source(in); ok {
			return status
		}
	}
	return valueobject.StatusNotEvaluated
}

// Неготовая сессия никогда не показывает OK/FAIL
func notEvaluatedUntilReady(in reconcileInput) (valueobject.MetricStatus, bool) {
	if !in.ready {
		return valueobject.StatusNotEvaluated, true
	}
	return "", false
}

func sessionStatus(field func(*entity.Session) valueobject.MetricStatus) statusSource {
	return func(in reconcileInput) (valueobject.MetricStatus, bool) {
		return authoritative(field(in.session))
	}
}

// Авторитетный статус бренда побеждает, но OK при расхождении брендов невозможен
func sessionBrandStatus(in reconcileInput) (valueobject.MetricStatus, bool) {
	status, ok := authoritative(in.session.BrandStatus)
	if ok && status == valueobject.StatusOK && in.mismatch {
		return valueobject.StatusIncompatibility, true
	}
	return status, ok
}

func mismatchIncompatibility(in reconcileInput) (valueobject.MetricStatus, bool) {
	if in.mismatch {
		return valueobject.StatusIncompatibility, true
	}
	return "", false
}

func evidenceStatus(field func(*entity.AnalysisEvidence) valueobject.MetricStatus) statusSource {
	return func(in reconcileInput) (valueobject.MetricStatus, bool) {
		if in.evidence == nil {
			return "", false
		}
		return authoritative(field(in.evidence))
	}
}

func issueFlag(flag func(reconcileInput) bool) statusSource {
	return func(in reconcileInput) (valueobject.MetricStatus, bool) {
		if flag(in) {
			return valueobject.StatusFail, true
		}
		return valueobject.StatusOK, true
	}
}

// authoritative пропускает пустое значение и отбрасывает недопустимое
func authoritative(status valueobject.MetricStatus) (valueobject.MetricStatus, bool) {
	if !status.IsSet() {
		return "", false
	}
	if err := status.Validate(); err != nil {
		valueobject.ReportMalformed(err)
		return "", false
	}
	return status, true
}

func brandMismatch(session *entity.Session, evidence *entity.AnalysisEvidence) bool {
	if session.BrandMismatch {
		return true
	}
	if evidence.HasFailedStep(entity.BrandConfirmationStep) {
		return true
	}

	user, log := session.UserBrand(), session.LogBrand()
	if user != "" && log != "" {
		return !strings.EqualFold(user, log)
	}

	// пара на уровне сессии неполная: сравниваем пару из evidence
	derivedUser, derivedLog := evidence.DerivedBrands()
	return derivedUser != "" && derivedLog != "" && !strings.EqualFold(derivedUser, derivedLog)
}

func detectConflict(evidence *entity.AnalysisEvidence) (bool, string) {
	if evidence.ConflictTesterVsLogs {
		return true, "tester answers conflict with log evidence"
	}
	if evidence.LogVerdict.Is(valueobject.LogInconclusive) && evidence.TesterVerdict.Is(valueobject.TesterPass) {
		return true, "tester reported PASS but logs are inconclusive"
	}
	return false, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
