package portal

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type (
	Job struct {
		ID                int64    `json:"id,omitempty" form:"-"`
		Title             string   `json:"title" form:"title" validate:"required"`
		Description       string   `json:"description" form:"description" validate:"required"`
		CompanyName       string   `json:"company_name" form:"company_name" validate:"required"`
		ApplyLink         string   `json:"apply_link" form:"apply_link" validate:"omitempty,url"`
		LastDate          string   `json:"last_date" form:"last_date" validate:"required"`
		Salary            int      `json:"salary" form:"salary" validate:"gte=0"`
		Location          string   `json:"location,omitempty" form:"location"`
		EligibleBranches  []string `json:"eligibleBranches" form:"-"`
		EligibleSemesters []int    `json:"eligibleSemesters" form:"-"`
		InterviewRounds   string   `json:"interviewRounds,omitempty" form:"-"` // serialized InterviewRounds
		CreatedAt         string   `json:"created_at,omitempty" form:"-"`
	}

	Account struct {
		ID       int64  `json:"id,omitempty" form:"-"`
		Username string `json:"username" form:"username" validate:"required"`
		Email    string `json:"email" form:"email" validate:"required,email"`
		Password string `json:"password,omitempty" form:"password"`
		Role     Role   `json:"role" form:"role" validate:"required,oneof=USER ADMIN SUPER_ADMIN COMPANY_ADMIN DEPT_ADMIN"`

		// COMPANY_ADMIN
		CompanyName        string   `json:"companyName,omitempty" form:"companyName"`
		AllowedDepartments []string `json:"allowedDepartments,omitempty" form:"-"`

		// DEPT_ADMIN
		AdminBranch string `json:"adminBranch,omitempty" form:"adminBranch"`

		// USER
		ComputerCode string `json:"computerCode,omitempty" form:"computerCode"`
		Batch        string `json:"batch,omitempty" form:"batch"`
		Branch       string `json:"branch,omitempty" form:"branch"`
	}

	Department struct {
		ID           int64  `json:"id,omitempty" form:"-"`
		Code         string `json:"code" form:"code" validate:"required,uppercase_code"`
		Name         string `json:"name" form:"name" validate:"required"`
		HODName      string `json:"hodName" form:"hodName"`
		ContactEmail string `json:"contactEmail" form:"contactEmail" validate:"omitempty,email"`
		MaxSemesters int    `json:"maxSemesters" form:"maxSemesters" validate:"min=1,max=12"`
	}

	Paper struct {
		ID         int64  `json:"id"`
		Title      string `json:"title"`
		Branch     string `json:"branch"`
		Semester   int    `json:"semester"`
		Subject    string `json:"subject"`
		Year       int    `json:"year"`
		Category   string `json:"category"`
		University string `json:"university"`
		FileURL    string `json:"pdfUrl,omitempty"`
	}

	Application struct {
		ID              int64             `json:"id"`
		JobID           int64             `json:"jobId"`
		JobTitle        string            `json:"jobTitle"`
		CompanyName     string            `json:"companyName"`
		ApplicantName   string            `json:"applicantName"`
		ApplicantEmail  string            `json:"applicantEmail"`
		ApplicantPhone  string            `json:"applicantPhone"`
		ApplicantRollNo string            `json:"applicantRollNo"`
		ResumeURL       string            `json:"resumeUrl,omitempty"`
		Status          ApplicationStatus `json:"status"`
		AppliedAt       string            `json:"appliedAt,omitempty"`
	}

	// Interview is an interview drive: a scheduled company visit.
	Interview struct {
		ID          int64           `json:"id,omitempty" form:"-"`
		CompanyName string          `json:"companyName" form:"companyName" validate:"required"`
		Date        string          `json:"date" form:"date" validate:"required"`
		Venue       string          `json:"venue" form:"venue"`
		Description string          `json:"description" form:"description"`
		Status      InterviewStatus `json:"status,omitempty" form:"-"`
	}

	GalleryItem struct {
		ID       int64  `json:"id,omitempty" form:"-"`
		Title    string `json:"title" form:"title" validate:"required"`
		ImageURL string `json:"imageUrl" form:"imageUrl" validate:"required,url"`
		Category string `json:"category" form:"category"`
	}

	Company struct {
		ID          int64  `json:"id,omitempty" form:"-"`
		Name        string `json:"name" form:"name" validate:"required"`
		Website     string `json:"website" form:"website" validate:"omitempty,url"`
		Description string `json:"description" form:"description"`
	}

	// JobApplication is the applicant's submission for a job; the resume is sent as a file.
	JobApplication struct {
		JobID           int64  `form:"jobId" validate:"required"`
		ApplicantName   string `form:"applicantName" validate:"required"`
		ApplicantEmail  string `form:"applicantEmail" validate:"required,email"`
		ApplicantPhone  string `form:"applicantPhone" validate:"required"`
		ApplicantRollNo string `form:"applicantRollNo" validate:"required"`
		CoverLetter     string `form:"coverLetter"`
		JobTitle        string `form:"jobTitle"`
		CompanyName     string `form:"companyName"`
	}

	ApplicationStatus string
	InterviewStatus   string
)

const (
	StatusPending     ApplicationStatus = "PENDING"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusRejected    ApplicationStatus = "REJECTED"

	InterviewScheduled InterviewStatus = "SCHEDULED"
	InterviewCompleted InterviewStatus = "COMPLETED"
	InterviewCancelled InterviewStatus = "CANCELLED"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusShortlisted, StatusRejected:
		return true
	}
	return false
}

func (s InterviewStatus) Valid() bool {
	switch s {
	case InterviewScheduled, InterviewCompleted, InterviewCancelled:
		return true
	}
	return false
}

type (
	Round struct {
		Enabled      bool   `json:"enabled"`
		Date         string `json:"date"`
		Time         string `json:"time"`
		Venue        string `json:"venue"`
		Instructions string `json:"instructions,omitempty"`
		Topics       string `json:"topics,omitempty"`
		Questions    string `json:"questions,omitempty"`
	}

	ProjectTask struct {
		Enabled      bool   `json:"enabled"`
		Description  string `json:"description"`
		Deadline     string `json:"deadline"`
		Requirements string `json:"requirements"`
	}

	// InterviewRounds is a bag of independent optional rounds, persisted as one blob per job.
	InterviewRounds struct {
		CodingRound        Round       `json:"codingRound"`
		TechnicalInterview Round       `json:"technicalInterview"`
		HRRound            Round       `json:"hrRound"`
		ProjectTask        ProjectTask `json:"projectTask"`
	}
)

func (r InterviewRounds) Encode() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "encoding interview rounds")
	}
	return string(b), nil
}

// EnabledRounds lists the labels of the enabled rounds.
func (r InterviewRounds) EnabledRounds() []string {
	var labels []string
	if r.CodingRound.Enabled {
		labels = append(labels, "Coding Round")
	}
	if r.TechnicalInterview.Enabled {
		labels = append(labels, "Technical Interview")
	}
	if r.HRRound.Enabled {
		labels = append(labels, "HR Round")
	}
	if r.ProjectTask.Enabled {
		labels = append(labels, "Project Task")
	}
	return labels
}

// DecodeInterviewRounds parses a serialized blob; an empty blob means no rounds.
func DecodeInterviewRounds(s string) (InterviewRounds, error) {
	var r InterviewRounds
	if s == "" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return r, errors.Wrap(err, "decoding interview rounds")
	}
	return r, nil
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	Token       string   `json:"token"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	CompanyName string   `json:"companyName"`
	Branch      string   `json:"branch"`
}
