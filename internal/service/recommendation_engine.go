package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/medical-scribe-server/internal/domain"
)

// MaxRecommendations caps how many recommendations a single note yields
const MaxRecommendations = 5

const (
	listSeparator       = "、"
	differentialPreview = 3
	testPreview         = 3
	medicationPreview   = 2
	associatedThreshold = 2
)

// severityMarkers are matched as plain substrings of the free-text severity.
// A negated phrase such as "重度ではない" still matches.
var severityMarkers = []string{"重", "強"}

// RecommendationRule is one entry of the ordered rule table. Applies and
// Describe are only called with a non-nil SOAP body and must tolerate any
// nested section being nil.
type RecommendationRule struct {
	ID       string
	Title    string
	Type     domain.RecommendationType
	Priority domain.Priority
	IconName string
	Applies  func(soap *domain.SOAPNote) bool
	Describe func(soap *domain.SOAPNote) string
}

// RecommendationEngine evaluates the rule table against clinical notes.
// It holds no mutable state and is safe for concurrent use.
type RecommendationEngine struct {
	rules []RecommendationRule
	limit int
}

// NewRecommendationEngine creates an engine with the standard rule table
func NewRecommendationEngine() *RecommendationEngine {
	engine := &RecommendationEngine{limit: MaxRecommendations}
	engine.initializeRules()
	return engine
}

var defaultEngine = NewRecommendationEngine()

// GenerateRecommendations runs the standard rule table against note.
// A nil note or a note without a SOAP body yields an empty slice.
func GenerateRecommendations(note *domain.ClinicalNote) []domain.Recommendation {
	return defaultEngine.Generate(note)
}

// Generate evaluates every rule in table order, stable-sorts the fired
// recommendations by priority and keeps the first MaxRecommendations.
func (e *RecommendationEngine) Generate(note *domain.ClinicalNote) []domain.Recommendation {
	recommendations := make([]domain.Recommendation, 0, len(e.rules))
	if note == nil || note.SOAP == nil {
		return recommendations
	}

	soap := note.SOAP
	for _, rule := range e.rules {
		if !rule.Applies(soap) {
			continue
		}
		recommendations = append(recommendations, domain.Recommendation{
			ID:          rule.ID,
			Type:        rule.Type,
			Title:       rule.Title,
			Description: rule.Describe(soap),
			Priority:    rule.Priority,
			IconName:    rule.IconName,
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Priority.Rank() < recommendations[j].Priority.Rank()
	})

	if len(recommendations) > e.limit {
		recommendations = recommendations[:e.limit]
	}
	return recommendations
}

// Rules returns a copy of the rule table in evaluation order
func (e *RecommendationEngine) Rules() []RecommendationRule {
	rules := make([]RecommendationRule, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// SummarizeList returns the first n items and the full item count
func SummarizeList(items []string, n int) (shown []string, total int) {
	total = len(items)
	if n < 0 {
		n = 0
	}
	if n > total {
		n = total
	}
	shown = make([]string, n)
	copy(shown, items[:n])
	return shown, total
}

func (e *RecommendationEngine) addRule(rule RecommendationRule) {
	e.rules = append(e.rules, rule)
}

// initializeRules sets up the rule table. Order matters: it is the
// tie-break between recommendations of equal priority.
func (e *RecommendationEngine) initializeRules() {
	e.addRule(RecommendationRule{
		ID:       "differential-check",
		Title:    "鑑別診断の確認",
		Type:     domain.RecommendationDifferential,
		Priority: domain.PriorityHigh,
		IconName: "ClipboardDocumentCheckIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return len(differentialDiagnoses(soap)) > 0
		},
		Describe: func(soap *domain.SOAPNote) string {
			shown, total := SummarizeList(differentialDiagnoses(soap), differentialPreview)
			return fmt.Sprintf("%sなど%dつの鑑別診断があります。除外診断のための追加情報を検討してください。",
				strings.Join(shown, listSeparator), total)
		},
	})

	e.addRule(RecommendationRule{
		ID:       "severity-warning",
		Title:    "重症度に注意",
		Type:     domain.RecommendationWarning,
		Priority: domain.PriorityHigh,
		IconName: "ExclamationTriangleIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return isSevere(severity(soap))
		},
		Describe: func(*domain.SOAPNote) string {
			return "患者は重度の症状を報告しています。バイタルサインの継続的なモニタリングと、必要に応じて専門医への紹介を検討してください。"
		},
	})

	e.addRule(RecommendationRule{
		ID:       "tests-suggested",
		Title:    "追加検査の実施",
		Type:     domain.RecommendationTest,
		Priority: domain.PriorityMedium,
		IconName: "BeakerIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return len(plannedTests(soap)) > 0
		},
		Describe: func(soap *domain.SOAPNote) string {
			shown, _ := SummarizeList(plannedTests(soap), testPreview)
			return fmt.Sprintf("提案された検査: %s。診断確定のため、これらの検査を検討してください。",
				strings.Join(shown, listSeparator))
		},
	})

	e.addRule(RecommendationRule{
		ID:       "followup-reminder",
		Title:    "フォローアップの設定",
		Type:     domain.RecommendationFollowUp,
		Priority: domain.PriorityMedium,
		IconName: "ArrowPathIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return followUp(soap) != ""
		},
		Describe: func(soap *domain.SOAPNote) string {
			return fmt.Sprintf("推奨フォローアップ: %s。症状の経過観察と治療効果の評価のため、フォローアップ予定を確認してください。",
				followUp(soap))
		},
	})

	e.addRule(RecommendationRule{
		ID:       "patient-education",
		Title:    "患者への説明事項",
		Type:     domain.RecommendationEducation,
		Priority: domain.PriorityLow,
		IconName: "UserGroupIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return patientEducation(soap) != ""
		},
		Describe: patientEducation,
	})

	e.addRule(RecommendationRule{
		ID:       "drug-interaction",
		Title:    "薬物相互作用の確認",
		Type:     domain.RecommendationWarning,
		Priority: domain.PriorityHigh,
		IconName: "ExclamationTriangleIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return len(prescribedMedications(soap)) > 0 && len(currentMedications(soap)) > 0
		},
		Describe: func(soap *domain.SOAPNote) string {
			shown, _ := SummarizeList(currentMedications(soap), medicationPreview)
			return "新規処方薬と既存薬の相互作用をご確認ください。現在服用中: " + strings.Join(shown, listSeparator)
		},
	})

	e.addRule(RecommendationRule{
		ID:       "associated-symptoms",
		Title:    "複数症状の包括的評価",
		Type:     domain.RecommendationDifferential,
		Priority: domain.PriorityMedium,
		IconName: "LightBulbIcon",
		Applies: func(soap *domain.SOAPNote) bool {
			return len(associatedSymptoms(soap)) > associatedThreshold
		},
		Describe: func(soap *domain.SOAPNote) string {
			return fmt.Sprintf("%dつの随伴症状があります。全身性疾患や複合的な病態の可能性を検討してください。",
				len(associatedSymptoms(soap)))
		},
	})
}

func isSevere(s string) bool {
	if s == "" {
		return false
	}
	for _, marker := range severityMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Field accessors below return zero values for absent sections.

func differentialDiagnoses(soap *domain.SOAPNote) []string {
	if soap.Assessment == nil {
		return nil
	}
	return soap.Assessment.DifferentialDiagnosis
}

func severity(soap *domain.SOAPNote) string {
	if soap.Subjective == nil {
		return ""
	}
	return soap.Subjective.Severity
}

func currentMedications(soap *domain.SOAPNote) []string {
	if soap.Subjective == nil {
		return nil
	}
	return soap.Subjective.Medications
}

func associatedSymptoms(soap *domain.SOAPNote) []string {
	if soap.Subjective == nil {
		return nil
	}
	return soap.Subjective.AssociatedSymptoms
}

func plannedTests(soap *domain.SOAPNote) []string {
	if soap.Plan == nil {
		return nil
	}
	return soap.Plan.Tests
}

func prescribedMedications(soap *domain.SOAPNote) []domain.PrescribedMedication {
	if soap.Plan == nil {
		return nil
	}
	return soap.Plan.Medications
}

func followUp(soap *domain.SOAPNote) string {
	if soap.Plan == nil {
		return ""
	}
	return soap.Plan.FollowUp
}

func patientEducation(soap *domain.SOAPNote) string {
	if soap.Plan == nil {
		return ""
	}
	return soap.Plan.PatientEducation
}
