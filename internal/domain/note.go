package domain

// ClinicalNote is the structured record produced from one doctor-patient
// conversation. Nested sections are pointers so a partially populated note
// decoded from model output can be told apart from an empty one.
type ClinicalNote struct {
	Summary     string       `json:"summary"`
	PatientInfo *PatientInfo `json:"patientInfo,omitempty"`
	SOAP        *SOAPNote    `json:"soap,omitempty"`
}

// PatientInfo holds the chief complaint and how long it has lasted
type PatientInfo struct {
	ChiefComplaint string `json:"chiefComplaint"`
	Duration       string `json:"duration"`
}

// SOAPNote is the Subjective/Objective/Assessment/Plan body of a note
type SOAPNote struct {
	Subjective *Subjective `json:"subjective,omitempty"`
	Objective  *Objective  `json:"objective,omitempty"`
	Assessment *Assessment `json:"assessment,omitempty"`
	Plan       *Plan       `json:"plan,omitempty"`
}

// Subjective captures what the patient reports
type Subjective struct {
	PresentIllness     string   `json:"presentIllness"`
	Symptoms           []string `json:"symptoms"`
	Severity           string   `json:"severity"`
	Onset              string   `json:"onset"`
	AssociatedSymptoms []string `json:"associatedSymptoms"`
	PastMedicalHistory string   `json:"pastMedicalHistory"`
	Medications        []string `json:"medications"` // currently taken, not prescribed
}

// Objective captures findings made by the clinician
type Objective struct {
	VitalSigns         *VitalSigns `json:"vitalSigns,omitempty"`
	PhysicalExam       string      `json:"physicalExam"`
	LaboratoryFindings string      `json:"laboratoryFindings"`
}

// VitalSigns are kept as free text since model output mixes units and prose
type VitalSigns struct {
	BloodPressure   string `json:"bloodPressure"`
	Pulse           string `json:"pulse"`
	Temperature     string `json:"temperature"`
	RespiratoryRate string `json:"respiratoryRate"`
}

// Assessment holds the working diagnosis and its alternatives
type Assessment struct {
	Diagnosis             string   `json:"diagnosis"`
	ICD10                 string   `json:"icd10"`
	DifferentialDiagnosis []string `json:"differentialDiagnosis"`
	ClinicalImpression    string   `json:"clinicalImpression"`
}

// Plan holds treatment, newly prescribed medications and follow-up
type Plan struct {
	Treatment        string                 `json:"treatment"`
	Medications      []PrescribedMedication `json:"medications"`
	Tests            []string               `json:"tests"`
	Referral         string                 `json:"referral"`
	FollowUp         string                 `json:"followUp"`
	PatientEducation string                 `json:"patientEducation"`
}

// PrescribedMedication is one newly prescribed drug
type PrescribedMedication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// ChiefComplaint returns the chief complaint or an empty string
func (n *ClinicalNote) ChiefComplaint() string {
	if n == nil || n.PatientInfo == nil {
		return ""
	}
	return n.PatientInfo.ChiefComplaint
}

// Diagnosis returns the working diagnosis and ICD-10 code, empty when absent
func (n *ClinicalNote) Diagnosis() (diagnosis, icd10 string) {
	if n == nil || n.SOAP == nil || n.SOAP.Assessment == nil {
		return "", ""
	}
	return n.SOAP.Assessment.Diagnosis, n.SOAP.Assessment.ICD10
}
