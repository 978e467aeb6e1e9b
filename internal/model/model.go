// Package model defines domain entities shared by the client core and the server.
package model

import "time"

// Booking kinds. The remote system treats returning patients differently
// (an MRN is expected instead of minted).
const (
	BookingNew       = "new"
	BookingReturning = "returning"
)

// Patient record workflow statuses.
const (
	StatusOpen           = "Open"
	StatusReadyForDoctor = "Ready for Doctor"
	StatusInConsultation = "In Consultation"
	StatusCompleted      = "Completed"
)

// Booking is a scheduled or walk-in visit request. The identifier is assigned
// by the client that created it and never changes, so a booking created offline
// already has its permanent identity.
type Booking struct {
	ID              string    `json:"id"`
	BookingType     string    `json:"booking_type"`
	MRNumber        string    `json:"mr_number,omitempty"`
	PatientName     string    `json:"patient_name"`
	Mobile          string    `json:"mobile"`
	Reference       string    `json:"reference"`
	AppointmentDate string    `json:"appointment_date"`
	TokenNumber     string    `json:"token_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
	Synced          bool      `json:"synced"`
}

// EntityID implements store.Entity.
func (b Booking) EntityID() string { return b.ID }

// Address is a postal address block; replaced wholesale on update.
type Address struct {
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	District string `json:"district,omitempty"`
	State    string `json:"state,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

// Insurance identifies a company/insurance scheme attached to the visit.
type Insurance struct {
	Company  string `json:"company,omitempty"`
	PolicyNo string `json:"policy_no,omitempty"`
	Approval string `json:"approval,omitempty"`
}

// Vitals is the triage measurement block recorded by nursing staff.
type Vitals struct {
	BP    string `json:"bp,omitempty"`
	Pulse string `json:"pulse,omitempty"`
	Temp  string `json:"temp,omitempty"`
	SpO2  string `json:"spo2,omitempty"`
	RR    string `json:"rr,omitempty"`
}

// RefractionEye holds per-eye refraction measurements.
type RefractionEye struct {
	Sphere   string `json:"sphere,omitempty"`
	Cylinder string `json:"cylinder,omitempty"`
	Axis     string `json:"axis,omitempty"`
	VA       string `json:"va,omitempty"`
}

// Refraction pairs both eyes for one measurement method.
type Refraction struct {
	Right RefractionEye `json:"right"`
	Left  RefractionEye `json:"left"`
}

// VisualAcuity records aided/unaided acuity per eye.
type VisualAcuity struct {
	RightUnaided string `json:"right_unaided,omitempty"`
	LeftUnaided  string `json:"left_unaided,omitempty"`
	RightAided   string `json:"right_aided,omitempty"`
	LeftAided    string `json:"left_aided,omitempty"`
}

// Prescription is the dispensed optical prescription.
type Prescription struct {
	Right    RefractionEye `json:"right"`
	Left     RefractionEye `json:"left"`
	PD       string        `json:"pd,omitempty"`
	LensType string        `json:"lens_type,omitempty"`
	Notes    string        `json:"notes,omitempty"`
}

// IOP is intraocular pressure per eye.
type IOP struct {
	Right string `json:"right,omitempty"`
	Left  string `json:"left,omitempty"`
}

// Diagnosis is the consultation outcome block.
type Diagnosis struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

// LineItem is one itemized medication, procedure or investigation. Items carry
// their own identifiers so individual rows stay addressable across edits.
type LineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Dosage   string `json:"dosage,omitempty"`
	Duration string `json:"duration,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// PatientRecord is the clinical chart for one patient visit, progressively
// filled in across stages (triage vitals, refraction, consultation, diagnosis).
// Every stage block is optional; absent blocks marshal away.
type PatientRecord struct {
	ID string `json:"id"`

	// Demographics
	MRNumber         string   `json:"mr_number,omitempty"`
	BookingType      string   `json:"booking_type"`
	PatientName      string   `json:"patient_name"`
	Gender           string   `json:"gender,omitempty"`
	Age              int      `json:"age,omitempty"`
	DOB              string   `json:"dob,omitempty"`
	Mobile           string   `json:"mobile"`
	AlternateContact string   `json:"alternate_contact,omitempty"`
	Address          *Address `json:"address,omitempty"`
	Email            string   `json:"email,omitempty"`

	// Appointment details
	AppointmentDate  string     `json:"appointment_date"`
	AppointmentTime  string     `json:"appointment_time,omitempty"`
	Department       string     `json:"department,omitempty"`
	ConsultingDoctor string     `json:"consulting_doctor,omitempty"`
	Reference        string     `json:"reference"`
	VisitType        string     `json:"visit_type,omitempty"`
	Insurance        *Insurance `json:"company_insurance,omitempty"`

	// Clinical history
	ChiefComplaints       string `json:"chief_complaints,omitempty"`
	PresentIllnessHistory string `json:"present_illness_history,omitempty"`
	PastMedicalHistory    string `json:"past_medical_history,omitempty"`
	PastOcularHistory     string `json:"past_ocular_history,omitempty"`
	SurgicalHistory       string `json:"surgical_history,omitempty"`
	DrugHistory           string `json:"drug_history,omitempty"`
	AllergyHistory        string `json:"allergy_history,omitempty"`

	// Nurse assessment
	Vitals       *Vitals `json:"vitals,omitempty"`
	Height       float64 `json:"height,omitempty"`
	Weight       float64 `json:"weight,omitempty"`
	BMI          float64 `json:"bmi,omitempty"`
	NursingNotes string  `json:"nursing_notes,omitempty"`
	TriageLevel  string  `json:"triage_level,omitempty"`

	// Refraction
	AutoRefraction       *Refraction   `json:"auto_refraction,omitempty"`
	SubjectiveRefraction *Refraction   `json:"subjective_refraction,omitempty"`
	VisualAcuity         *VisualAcuity `json:"visual_acuity,omitempty"`
	Prescription         *Prescription `json:"prescription,omitempty"`

	// Ophthalmic examination
	ExternalExam       string `json:"external_exam,omitempty"`
	AnteriorSegment    string `json:"anterior_segment,omitempty"`
	IOP                *IOP   `json:"iop,omitempty"`
	PupillaryReactions string `json:"pupillary_reactions,omitempty"`
	FundusExam         string `json:"fundus_exam,omitempty"`
	SlitLamp           string `json:"slit_lamp,omitempty"`
	ImagingReports     string `json:"imaging_reports,omitempty"`

	// Investigations & treatment
	Diagnosis      *Diagnosis `json:"diagnosis,omitempty"`
	Investigations []LineItem `json:"investigations,omitempty"`
	Medications    []LineItem `json:"medications,omitempty"`
	Procedures     []LineItem `json:"procedures,omitempty"`
	Advice         string     `json:"advice,omitempty"`
	FollowUpDate   string     `json:"follow_up_date,omitempty"`

	// Administrative
	ConsentStatus   string    `json:"consent_status,omitempty"`
	AttendingNurse  string    `json:"attending_nurse,omitempty"`
	AttendingDoctor string    `json:"attending_doctor,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Synced          bool      `json:"synced"`
}

// EntityID implements store.Entity.
func (p PatientRecord) EntityID() string { return p.ID }

// Pending operation kinds replayed against the remote system.
const (
	OpCreateBooking = "create_booking"
	OpUpdateBooking = "update_booking"
	OpCreatePatient = "create_patient"
	OpUpdatePatient = "update_patient"
)

// PendingOp is a durable intent to mutate the remote system. Exactly one of
// Booking/Patient is set, matching Kind.
type PendingOp struct {
	Kind     string         `json:"type"`
	Booking  *Booking       `json:"booking,omitempty"`
	Patient  *PatientRecord `json:"patient,omitempty"`
	QueuedAt time.Time      `json:"timestamp"`
}

// User is a staff account as the remote system reports it at login.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session is the locally persisted authenticated user plus access token.
type Session struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StaffAccount is a staff login as the server stores it. Passwords are hashed
// with a per-account salt and never leave the server.
type StaffAccount struct {
	ID        string
	Username  string
	Role      string
	PwdHash   []byte
	SaltAuth  []byte
	CreatedAt time.Time
}
