package upload

import (
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
)

type (
	Mode string
	Step int
)

// Modes
const (
	ModeManual Mode = "manual"
	ModeBulk   Mode = "bulk"
)

// Steps of the manual mode; the bulk mode is a single step.
const (
	StepBranch Step = iota + 1
	StepSemester
	StepSubjects
)

// PresetSemesters are offered as a grid; any other positive number may be typed.
var PresetSemesters = []int{1, 2, 3, 4, 5, 6, 7, 8}

var (
	ErrWrongStep       = errors.New("not available at this step")
	ErrWrongMode       = errors.New("not available in this mode")
	ErrBranchRequired  = core.NewValidationError(errors.New("branch is required"), core.FieldError{Field: "branch", Error: "this field is required"})
	ErrInvalidSemester = core.NewValidationError(errors.New("invalid semester"), core.FieldError{Field: "semester", Error: "semester must be a positive number"})
	ErrZipRequired     = core.NewValidationError(errors.New("zip file is required"), core.FieldError{Field: "file", Error: "this field is required"})
)

// Wizard is the paper upload wizard state.
type Wizard struct {
	Mode Mode `json:"mode"`
	Step Step `json:"step"`

	Branch       string `json:"branch"`
	NewBranch    string `json:"newBranch"`
	UseNewBranch bool   `json:"useNewBranch"`

	Semester          int  `json:"semester"`
	CustomSemester    int  `json:"customSemester"`
	UseCustomSemester bool `json:"useCustomSemester"`

	Category   string `json:"category"`
	University string `json:"university"`

	Subjects Subjects `json:"subjects"`
	Zip      *File    `json:"zip,omitempty"`
}

func NewWizard(category, university string) Wizard {
	w := Wizard{Category: category, University: university}
	w.SetMode(ModeManual)
	return w
}

// SetMode switches mode and resets the step state.
func (w *Wizard) SetMode(m Mode) {
	w.Mode = m
	w.resetSteps()
}

// Reset clears every selection back to step 1, keeping the mode, category and university.
func (w *Wizard) Reset() {
	w.resetSteps()
}

func (w *Wizard) resetSteps() {
	w.Step = StepBranch
	w.Branch, w.NewBranch, w.UseNewBranch = "", "", false
	w.Semester, w.CustomSemester, w.UseCustomSemester = 0, 0, false
	w.Subjects = NewSubjects()
	w.Zip = nil
}

// ToggleNewBranch switches between picking an existing branch and typing a new one.
func (w *Wizard) ToggleNewBranch(on bool) {
	w.UseNewBranch = on
	if on {
		w.Branch = ""
	} else {
		w.NewBranch = ""
	}
}

func (w *Wizard) ChooseBranch(code string) error {
	if err := w.expect(ModeManual, StepBranch); err != nil {
		return err
	}
	code = core.CleanString(code)
	if code == "" {
		return ErrBranchRequired
	}
	w.ToggleNewBranch(false)
	w.Branch = code
	w.Step = StepSemester
	return nil
}

func (w *Wizard) ChooseNewBranch(name string) error {
	if err := w.expect(ModeManual, StepBranch); err != nil {
		return err
	}
	name = core.CleanString(name)
	if name == "" {
		return ErrBranchRequired
	}
	w.ToggleNewBranch(true)
	w.NewBranch = name
	w.Step = StepSemester
	return nil
}

func (w *Wizard) ChooseSemester(n int) error {
	if err := w.expect(ModeManual, StepSemester); err != nil {
		return err
	}
	if n < PresetSemesters[0] || n > PresetSemesters[len(PresetSemesters)-1] {
		return ErrInvalidSemester
	}
	w.UseCustomSemester, w.CustomSemester = false, 0
	w.Semester = n
	w.Step = StepSubjects
	return nil
}

func (w *Wizard) ChooseCustomSemester(n int) error {
	if err := w.expect(ModeManual, StepSemester); err != nil {
		return err
	}
	if n <= 0 {
		return ErrInvalidSemester
	}
	w.UseCustomSemester, w.Semester = true, 0
	w.CustomSemester = n
	w.Step = StepSubjects
	return nil
}

// Back returns to the previous step, leaving the review if it was open.
func (w *Wizard) Back() {
	if w.Step == StepSubjects && w.Subjects.Reviewing {
		w.Subjects.Reviewing = false
		return
	}
	if w.Step > StepBranch {
		w.Step--
	}
}

func (w *Wizard) SetZip(f File) error {
	if w.Mode != ModeBulk {
		return ErrWrongMode
	}
	w.Zip = &f
	return nil
}

func (w *Wizard) ResolvedBranch() string {
	if w.UseNewBranch {
		return w.NewBranch
	}
	return w.Branch
}

func (w *Wizard) ResolvedSemester() int {
	if w.UseCustomSemester {
		return w.CustomSemester
	}
	return w.Semester
}

// Meta is the metadata shared by every request of a manual upload.
type Meta struct {
	Branch     string
	Semester   int
	Category   string
	University string
	Year       int
}

func (w *Wizard) Meta() Meta {
	return Meta{
		Branch:     w.ResolvedBranch(),
		Semester:   w.ResolvedSemester(),
		Category:   w.Category,
		University: w.University,
	}
}

// Ready reports whether the wizard can be submitted in its current mode.
func (w *Wizard) Ready() error {
	if w.Mode == ModeBulk {
		if w.Zip == nil {
			return ErrZipRequired
		}
		return nil
	}
	if w.Step != StepSubjects {
		return ErrWrongStep
	}
	if !w.Subjects.Valid() {
		return core.NewValidationError(ErrInvalidBatch)
	}
	return nil
}

func (w *Wizard) expect(m Mode, s Step) error {
	if w.Mode != m {
		return ErrWrongMode
	}
	if w.Step != s {
		return ErrWrongStep
	}
	return nil
}
