package notestore

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/medical-scribe-server/internal/domain"
)

// utf8BOM lets spreadsheet software detect the encoding of Japanese text
const utf8BOM = "\ufeff"

var historyHeader = []string{"id", "created_at", "chief_complaint", "diagnosis", "icd10", "summary"}

// WriteHistoryCSV writes one row per record. Every cell is quoted.
func WriteHistoryCSV(w io.Writer, records []*Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return err
	}
	writeRow(bw, historyHeader)

	for _, rec := range records {
		diagnosis, icd10 := rec.Note.Diagnosis()
		summary := ""
		if rec.Note != nil {
			summary = rec.Note.Summary
		}
		writeRow(bw, []string{
			rec.ID,
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.Note.ChiefComplaint(),
			diagnosis,
			icd10,
			summary,
		})
	}
	return bw.Flush()
}

// WriteNoteCSV writes a single note as 項目/内容 rows, the layout the
// scribe UI downloads.
func WriteNoteCSV(w io.Writer, note *domain.ClinicalNote) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return err
	}
	for i, row := range noteRows(note) {
		if i > 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(domain.EscapeCSVCell(row[0]) + "," + domain.EscapeCSVCell(row[1]))
	}
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, cells []string) {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = domain.EscapeCSVCell(c)
	}
	bw.WriteString(strings.Join(escaped, ","))
	bw.WriteString("\n")
}

func noteRows(note *domain.ClinicalNote) [][2]string {
	var (
		pi = &domain.PatientInfo{}
		s  = &domain.Subjective{}
		o  = &domain.Objective{}
		v  = &domain.VitalSigns{}
		a  = &domain.Assessment{}
		p  = &domain.Plan{}
	)
	summary := ""
	if note != nil {
		summary = note.Summary
		if note.PatientInfo != nil {
			pi = note.PatientInfo
		}
		if soap := note.SOAP; soap != nil {
			if soap.Subjective != nil {
				s = soap.Subjective
			}
			if soap.Objective != nil {
				o = soap.Objective
				if o.VitalSigns != nil {
					v = o.VitalSigns
				}
			}
			if soap.Assessment != nil {
				a = soap.Assessment
			}
			if soap.Plan != nil {
				p = soap.Plan
			}
		}
	}

	return [][2]string{
		{"項目", "内容"},
		{"要約", summary},
		{"主訴", pi.ChiefComplaint},
		{"期間", pi.Duration},
		{"現病歴", s.PresentIllness},
		{"症状", strings.Join(s.Symptoms, ", ")},
		{"重症度", s.Severity},
		{"発症", s.Onset},
		{"随伴症状", strings.Join(s.AssociatedSymptoms, ", ")},
		{"既往歴", s.PastMedicalHistory},
		{"内服薬", strings.Join(s.Medications, ", ")},
		{"血圧", v.BloodPressure},
		{"脈拍", v.Pulse},
		{"体温", v.Temperature},
		{"呼吸数", v.RespiratoryRate},
		{"身体所見", o.PhysicalExam},
		{"検査所見", o.LaboratoryFindings},
		{"診断名", a.Diagnosis},
		{"ICD-10", a.ICD10},
		{"鑑別診断", strings.Join(a.DifferentialDiagnosis, ", ")},
		{"臨床的印象", a.ClinicalImpression},
		{"治療方針", p.Treatment},
		{"処方薬", formatMedications(p.Medications)},
		{"検査", strings.Join(p.Tests, ", ")},
		{"紹介", p.Referral},
		{"フォローアップ", p.FollowUp},
		{"患者教育", p.PatientEducation},
	}
}

func formatMedications(meds []domain.PrescribedMedication) string {
	out := make([]string, 0, len(meds))
	for _, m := range meds {
		var parts []string
		for _, part := range []string{m.Name, m.Dosage, m.Frequency, m.Duration} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		out = append(out, strings.Join(parts, " "))
	}
	return strings.Join(out, "; ")
}

// NoteFilename returns the download name for a note export, e.g.
// soap_note_2025-01-02T03-04-05.csv
func NoteFilename(t time.Time, ext string) string {
	return "soap_note_" + domain.TimestampForFilename(t) + "." + ext
}
