package model

// PatientPatch is a partial update of a PatientRecord. Nil fields are left
// untouched; non-nil fields replace the corresponding top-level key wholesale.
// Nested blocks are never deep-merged: a caller supplying a Diagnosis supplies
// the whole Diagnosis.
type PatientPatch struct {
	MRNumber         *string    `json:"mr_number,omitempty"`
	BookingType      *string    `json:"booking_type,omitempty"`
	PatientName      *string    `json:"patient_name,omitempty"`
	Gender           *string    `json:"gender,omitempty"`
	Age              *int       `json:"age,omitempty"`
	DOB              *string    `json:"dob,omitempty"`
	Mobile           *string    `json:"mobile,omitempty"`
	AlternateContact *string    `json:"alternate_contact,omitempty"`
	Address          *Address   `json:"address,omitempty"`
	Email            *string    `json:"email,omitempty"`
	AppointmentDate  *string    `json:"appointment_date,omitempty"`
	AppointmentTime  *string    `json:"appointment_time,omitempty"`
	Department       *string    `json:"department,omitempty"`
	ConsultingDoctor *string    `json:"consulting_doctor,omitempty"`
	Reference        *string    `json:"reference,omitempty"`
	VisitType        *string    `json:"visit_type,omitempty"`
	Insurance        *Insurance `json:"company_insurance,omitempty"`

	ChiefComplaints       *string `json:"chief_complaints,omitempty"`
	PresentIllnessHistory *string `json:"present_illness_history,omitempty"`
	PastMedicalHistory    *string `json:"past_medical_history,omitempty"`
	PastOcularHistory     *string `json:"past_ocular_history,omitempty"`
	SurgicalHistory       *string `json:"surgical_history,omitempty"`
	DrugHistory           *string `json:"drug_history,omitempty"`
	AllergyHistory        *string `json:"allergy_history,omitempty"`

	Vitals       *Vitals  `json:"vitals,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	BMI          *float64 `json:"bmi,omitempty"`
	NursingNotes *string  `json:"nursing_notes,omitempty"`
	TriageLevel  *string  `json:"triage_level,omitempty"`

	AutoRefraction       *Refraction   `json:"auto_refraction,omitempty"`
	SubjectiveRefraction *Refraction   `json:"subjective_refraction,omitempty"`
	VisualAcuity         *VisualAcuity `json:"visual_acuity,omitempty"`
	Prescription         *Prescription `json:"prescription,omitempty"`

	ExternalExam       *string `json:"external_exam,omitempty"`
	AnteriorSegment    *string `json:"anterior_segment,omitempty"`
	IOP                *IOP    `json:"iop,omitempty"`
	PupillaryReactions *string `json:"pupillary_reactions,omitempty"`
	FundusExam         *string `json:"fundus_exam,omitempty"`
	SlitLamp           *string `json:"slit_lamp,omitempty"`
	ImagingReports     *string `json:"imaging_reports,omitempty"`

	Diagnosis      *Diagnosis `json:"diagnosis,omitempty"`
	Investigations []LineItem `json:"investigations,omitempty"`
	Medications    []LineItem `json:"medications,omitempty"`
	Procedures     []LineItem `json:"procedures,omitempty"`
	Advice         *string    `json:"advice,omitempty"`
	FollowUpDate   *string    `json:"follow_up_date,omitempty"`

	ConsentStatus   *string `json:"consent_status,omitempty"`
	AttendingNurse  *string `json:"attending_nurse,omitempty"`
	AttendingDoctor *string `json:"attending_doctor,omitempty"`
	Status          *string `json:"status,omitempty"`
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Apply merges the patch over p, replacing only the keys the caller supplied.
func (u PatientPatch) Apply(p *PatientRecord) {
	setStr(&p.MRNumber, u.MRNumber)
	setStr(&p.BookingType, u.BookingType)
	setStr(&p.PatientName, u.PatientName)
	setStr(&p.Gender, u.Gender)
	if u.Age != nil {
		p.Age = *u.Age
	}
	setStr(&p.DOB, u.DOB)
	setStr(&p.Mobile, u.Mobile)
	setStr(&p.AlternateContact, u.AlternateContact)
	if u.Address != nil {
		p.Address = u.Address
	}
	setStr(&p.Email, u.Email)
	setStr(&p.AppointmentDate, u.AppointmentDate)
	setStr(&p.AppointmentTime, u.AppointmentTime)
	setStr(&p.Department, u.Department)
	setStr(&p.ConsultingDoctor, u.ConsultingDoctor)
	setStr(&p.Reference, u.Reference)
	setStr(&p.VisitType, u.VisitType)
	if u.Insurance != nil {
		p.Insurance = u.Insurance
	}

	setStr(&p.ChiefComplaints, u.ChiefComplaints)
	setStr(&p.PresentIllnessHistory, u.PresentIllnessHistory)
	setStr(&p.PastMedicalHistory, u.PastMedicalHistory)
	setStr(&p.PastOcularHistory, u.PastOcularHistory)
	setStr(&p.SurgicalHistory, u.SurgicalHistory)
	setStr(&p.DrugHistory, u.DrugHistory)
	setStr(&p.AllergyHistory, u.AllergyHistory)

	if u.Vitals != nil {
		p.Vitals = u.Vitals
	}
	if u.Height != nil {
		p.Height = *u.Height
	}
	if u.Weight != nil {
		p.Weight = *u.Weight
	}
	if u.BMI != nil {
		p.BMI = *u.BMI
	}
	setStr(&p.NursingNotes, u.NursingNotes)
	setStr(&p.TriageLevel, u.TriageLevel)

	if u.AutoRefraction != nil {
		p.AutoRefraction = u.AutoRefraction
	}
	if u.SubjectiveRefraction != nil {
		p.SubjectiveRefraction = u.SubjectiveRefraction
	}
	if u.VisualAcuity != nil {
		p.VisualAcuity = u.VisualAcuity
	}
	if u.Prescription != nil {
		p.Prescription = u.Prescription
	}

	setStr(&p.ExternalExam, u.ExternalExam)
	setStr(&p.AnteriorSegment, u.AnteriorSegment)
	if u.IOP != nil {
		p.IOP = u.IOP
	}
	setStr(&p.PupillaryReactions, u.PupillaryReactions)
	setStr(&p.FundusExam, u.FundusExam)
	setStr(&p.SlitLamp, u.SlitLamp)
	setStr(&p.ImagingReports, u.ImagingReports)

	if u.Diagnosis != nil {
		p.Diagnosis = u.Diagnosis
	}
	if u.Investigations != nil {
		p.Investigations = u.Investigations
	}
	if u.Medications != nil {
		p.Medications = u.Medications
	}
	if u.Procedures != nil {
		p.Procedures = u.Procedures
	}
	setStr(&p.Advice, u.Advice)
	setStr(&p.FollowUpDate, u.FollowUpDate)

	setStr(&p.ConsentStatus, u.ConsentStatus)
	setStr(&p.AttendingNurse, u.AttendingNurse)
	setStr(&p.AttendingDoctor, u.AttendingDoctor)
	setStr(&p.Status, u.Status)
}
